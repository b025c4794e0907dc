package internal

import "time"

// Config is loaded from the environment via go-env.
type Config struct {
	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	LogLevel string `env:"LOG_LEVEL,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	AudioOutDir    string `env:"AUDIO_OUT_DIR,required=true"`

	TokenSecret       string        `env:"TOKEN_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	StoryBaseURL    string `env:"STORY_BASE_URL,required=true"`
	StoryModel      string `env:"STORY_MODEL,required=true"`
	ContextMessages int    `env:"CONTEXT_MESSAGES,required=true"`
	RecallMemories  int    `env:"RECALL_MEMORIES,required=true"`

	TTSBaseURL   string `env:"TTS_BASE_URL"`
	TTSVoice     string `env:"TTS_VOICE"`
	TTSVoices    string `env:"TTS_VOICES"`
	EnableAudio  bool   `env:"ENABLE_AUDIO,required=true"`
	EnableStream bool   `env:"ENABLE_STREAMING,required=true"`

	TurnTimeout      time.Duration `env:"TURN_TIMEOUT,required=true"`
	AutosaveInterval time.Duration `env:"AUTOSAVE_INTERVAL,required=true"`
	StorageGCPeriod  time.Duration `env:"STORAGE_GC_PERIOD,required=true"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,required=true"`

	CensoredWordsFile string `env:"CENSORED_WORDS_FILE"`
	CharReplacement   string `env:"CHARACTER_REPLACEMENT"`
}

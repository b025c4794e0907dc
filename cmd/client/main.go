package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"vdm-lab/auth"
	"vdm-lab/domain"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"VDM_SERVER_ADDR,default=localhost:8000"`
	RoomID        string `env:"VDM_ROOM_ID,default=tavern"`
	Name          string `env:"VDM_NAME,required=true"`
	Password      string `env:"VDM_PASSWORD,required=true"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	session, err := login(config)
	if err != nil {
		return exitRuntime, err
	}
	color.Green.Printf("Logged in as %s\n", session.Name)

	connID := uuid.NewString()
	url := fmt.Sprintf("ws://%s/ws/%s/%s/%s",
		config.ServerAddress, config.RoomID, connID, session.Token)
	socket, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("connecting to room: %w", err)
	}
	defer socket.Close()

	go readLoop(socket)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var msg map[string]any
		switch text {
		case "/start":
			msg = map[string]any{"kind": "start_game", "payload": map[string]any{}}
		case "/submit":
			msg = map[string]any{"kind": "submit_turn", "payload": map[string]any{}}
		case "/resume":
			msg = map[string]any{"kind": "resume_game", "payload": map[string]any{}}
		case "/quit":
			return exitOK, nil
		default:
			msg = map[string]any{"kind": "say", "payload": map[string]any{"message": text}}
		}
		if err := socket.WriteJSON(msg); err != nil {
			return exitRuntime, fmt.Errorf("sending message: %w", err)
		}
	}
	return exitOK, nil
}

func login(config Config) (auth.Session, error) {
	body, _ := json.Marshal(auth.LoginRequest{Name: config.Name, Password: config.Password})
	resp, err := http.Post(
		fmt.Sprintf("http://%s/api/login", config.ServerAddress),
		"application/json", bytes.NewReader(body))
	if err != nil {
		return auth.Session{}, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return auth.Session{}, fmt.Errorf("login refused (%s)", resp.Status)
	}
	var session auth.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return auth.Session{}, fmt.Errorf("decoding login response: %w", err)
	}
	return session, nil
}

func readLoop(socket *websocket.Conn) {
	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			color.Red.Println("Connection closed.")
			os.Exit(exitOK)
		}
		render(data)
	}
}

func render(data []byte) {
	raw := struct {
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return
	}

	switch raw.Kind {
	case "system":
		var p struct {
			Message string `json:"message"`
		}
		json.Unmarshal(raw.Payload, &p)
		color.Yellow.Printf("* %s\n", p.Message)
	case "chat":
		var entry domain.LogEntry
		json.Unmarshal(raw.Payload, &entry)
		if entry.AuthorID == domain.NarratorID {
			color.Magenta.Printf("%s: %s\n", entry.AuthorName, entry.Content)
		} else {
			color.Cyan.Printf("%s: %s\n", entry.AuthorName, entry.Content)
		}
	case "chat_chunk":
		var p struct {
			Content string `json:"content"`
		}
		json.Unmarshal(raw.Payload, &p)
		fmt.Print(p.Content)
	case "stream_start":
		color.Magenta.Print("GM: ")
	case "stream_end":
		fmt.Println()
	case "state_update":
		var snapshot domain.Snapshot
		if err := json.Unmarshal(raw.Payload, &snapshot); err == nil {
			renderState(snapshot)
		}
	case "audio":
		var p struct {
			URL string `json:"url"`
		}
		json.Unmarshal(raw.Payload, &p)
		color.Gray.Printf("[audio: %s]\n", p.URL)
	}
}

// renderState prints the room roster as a table after each state update.
func renderState(snapshot domain.Snapshot) {
	ids := lo.Keys(snapshot.Players)
	sort.Slice(ids, func(i, j int) bool {
		return snapshot.Players[ids[i]].Name < snapshot.Players[ids[j]].Name
	})
	rows := lo.Map(ids, func(id string, _ int) []string {
		p := snapshot.Players[id]
		host := ""
		if id == snapshot.HostPlayerID {
			host = "yes"
		}
		active := "no"
		if p.Active {
			active = "yes"
		}
		return []string{p.Name, active, host}
	})

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Player", "Active", "Host"})
	for _, row := range rows {
		table.Append(row)
	}
	color.Gray.Printf("-- %s | %s --\n", snapshot.GameState, snapshot.TurnState)
	table.Render()
}

// Package ws exposes the HTTP and websocket surface of the server: account
// endpoints, the audio file mount, and the per-room game socket.
package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"vdm-lab/auth"
	"vdm-lab/domain"
	vdmerrors "vdm-lab/errors"
	"vdm-lab/services"
)

// VoiceLister exposes the available TTS voices; nil when audio is disabled.
type VoiceLister interface {
	Voices() []string
}

type Server struct {
	log          *slog.Logger
	accounts     *auth.Manager
	service      *services.GameService
	voices       VoiceLister
	audioDir     string
	bufferSize   int
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

func NewServer(log *slog.Logger, accounts *auth.Manager, service *services.GameService,
	voices VoiceLister, audioDir string, bufferSize int, writeTimeout time.Duration) *Server {
	return &Server{
		log:          log,
		accounts:     accounts,
		service:      service,
		voices:       voices,
		audioDir:     audioDir,
		bufferSize:   bufferSize,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/voices", s.handleVoices).Methods(http.MethodGet)
	r.PathPrefix("/audio/").Handler(http.StripPrefix("/audio/",
		http.FileServer(http.Dir(s.audioDir))))
	r.HandleFunc("/ws/{room_id}/{player_id}/{token}", s.handleSocket)
	return r
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed request body"})
		return
	}
	if err := s.accounts.Register(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Registration successful. You can now log in.",
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed request body"})
		return
	}
	session, err := s.accounts.Login(req)
	if err != nil {
		if errors.Is(err, vdmerrors.ErrBadCredentials) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid username or password."})
			return
		}
		s.log.Error("Login failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleVoices(w http.ResponseWriter, _ *http.Request) {
	var voices []string
	if s.voices != nil {
		voices = s.voices.Voices()
	}
	writeJSON(w, http.StatusOK, voices)
}

// handleSocket authenticates the session token and runs the connection's read
// loop. Authentication failure closes the socket with a policy-violation code
// and mutates nothing.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomID := domain.RoomID(vars["room_id"])
	connID := vars["player_id"]
	token := vars["token"]

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	conn := NewConn(socket, s.bufferSize, s.writeTimeout, s.log)
	go conn.WritePump()

	participant, err := s.service.Join(roomID, connID, token, conn)
	if err != nil {
		conn.CloseWithPolicyViolation("Invalid session token.")
		return
	}
	defer func() {
		s.service.Leave(roomID, connID, conn)
		conn.Close()
	}()

	ctx := r.Context()
	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			s.log.Info("Connection closed", "room_id", roomID, "player", participant.Name)
			return
		}
		var msg services.Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			// Malformed inbound frames are dropped; the connection stays up.
			s.log.Warn("Dropping malformed inbound message", "room_id", roomID, "error", err)
			continue
		}
		s.service.Handle(ctx, roomID, connID, conn, msg)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

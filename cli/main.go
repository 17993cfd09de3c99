// Package main provides a terminal chat client for the therapy API.
// It creates or resumes a session, sends messages over HTTP and prints the
// session's live events from the WebSocket stream.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/therapy/internal/domain"
	"github.com/xiaot623/gogo/therapy/internal/logging"
)

const userIDHeader = "X-User-ID"

// Client talks to the public chat API as one user.
type Client struct {
	baseURL    string
	userID     string
	sessionID  string
	httpClient *http.Client
	conn       *websocket.Conn
	done       chan struct{}
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userID:     userID,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		done:       make(chan struct{}),
	}
}

// Close closes the stream connection.
func (c *Client) Close() error {
	close(c.done)
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set(userIDHeader, c.userID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &apiErr)
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, apiErr.Error)
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

// CreateSession starts a new session and remembers it.
func (c *Client) CreateSession() error {
	var resp struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.do(http.MethodPost, "/api/chat/sessions", nil, &resp); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	c.sessionID = resp.SessionID
	return nil
}

// PrintHistory prints the messages already in the session.
func (c *Client) PrintHistory() error {
	var messages []domain.Message
	if err := c.do(http.MethodGet, "/api/chat/sessions/"+c.sessionID+"/history", nil, &messages); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	for _, m := range messages {
		fmt.Printf("[%s] %s: %s\n", m.Timestamp.Local().Format(time.Kitchen), m.Role, m.Content)
	}
	return nil
}

// Watch connects to the session event stream.
func (c *Client) Watch() error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/api/chat/sessions/" + c.sessionID + "/stream"

	header := http.Header{}
	header.Set(userIDHeader, c.userID)
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.conn = conn
	return nil
}

// ReadEvents prints stream events until the connection closes.
func (c *Client) ReadEvents() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					logging.Debug().Err(err).Msg("stream closed")
				}
				return
			}

			var ev domain.SessionEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				logging.Warn().Err(err).Msg("unreadable event")
				continue
			}
			fmt.Printf("\n[event %s] history=%d goals=%d\n", ev.Name, len(ev.Data.History), len(ev.Data.Goals))
		}
	}
}

// SendMessage sends one turn and prints the reply.
func (c *Client) SendMessage(text string) error {
	var resp struct {
		Response string          `json:"response"`
		Analysis domain.Analysis `json:"analysis"`
		Metadata struct {
			SafetyLevel domain.SafetyLevel `json:"safetyLevel"`
			Technique   string             `json:"technique"`
		} `json:"metadata"`
		Degraded bool `json:"degraded"`
	}
	if err := c.do(http.MethodPost, "/api/chat/sessions/"+c.sessionID+"/messages", map[string]string{"message": text}, &resp); err != nil {
		return err
	}

	fmt.Printf("\ntherapist: %s\n", resp.Response)
	fmt.Printf("  (mood: %s, risk: %.0f, technique: %s, safety: %s",
		resp.Analysis.EmotionalState, resp.Analysis.RiskLevel, resp.Metadata.Technique, resp.Metadata.SafetyLevel)
	if resp.Degraded {
		fmt.Print(", degraded")
	}
	fmt.Println(")")
	return nil
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Chat API base URL")
	userID := flag.String("user", "", "User ID (must be registered on the internal API)")
	sessionID := flag.String("session", "", "Resume an existing session instead of creating one")
	watch := flag.Bool("watch", false, "Print live session events")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	client := NewClient(*addr, *userID)
	defer client.Close()

	if *sessionID != "" {
		client.sessionID = *sessionID
		if err := client.PrintHistory(); err != nil {
			logging.Fatal().Err(err).Msg("failed to resume session")
		}
	} else if err := client.CreateSession(); err != nil {
		logging.Fatal().Err(err).Msg("failed to create session")
	}

	fmt.Printf("Session: %s\n", client.sessionID)

	if *watch {
		if err := client.Watch(); err != nil {
			logging.Warn().Err(err).Msg("live events unavailable")
		} else {
			go client.ReadEvents()
		}
	}

	fmt.Println("\nType a message and press Enter to send.")
	fmt.Println("Commands: /history, /quit")

	// Handle Ctrl+C
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			switch input {
			case "":
				continue
			case "/quit":
				fmt.Println("Take care.")
				return
			case "/history":
				if err := client.PrintHistory(); err != nil {
					logging.Error().Err(err).Msg("history failed")
				}
				continue
			}

			if err := client.SendMessage(input); err != nil {
				logging.Error().Err(err).Msg("send failed")
			}
		}
	}
}

// Command somi-client simulates a companion device against a running server:
// it obtains a token, opens the WebSocket, and walks one conversation turn
// with canned audio.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

type tokenRequest struct {
	UserID       string `json:"user_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

type envelope struct {
	Type       string `json:"type"`
	Question   string `json:"question"`
	Text       string `json:"text"`
	PlaybackID string `json:"playback_id"`
	CaptureID  string `json:"capture_id"`
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	Audio      string `json:"audio"`
	Seconds    int    `json:"seconds"`
}

func main() {
	server := flag.String("server", "localhost:8080", "server host:port")
	userID := flag.String("user", "demo-user", "user ID to converse as")
	clientSecret := flag.String("secret", "", "client secret for token issuance")
	utterance := flag.Duration("utterance", 2*time.Second, "length of the simulated utterance")
	flag.Parse()

	token, err := fetchToken(*server, *userID, *clientSecret)
	if err != nil {
		log.Fatal("Failed to obtain token:", err)
	}
	log.Printf("Authenticated as %s", *userID)

	u := url.URL{Scheme: "ws", Host: *server, Path: "/ws"}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()
	fmt.Println("Connected, starting conversation")

	send(c, map[string]any{"type": "conversation_start"})

	turns := 0
	deadline := time.Now().Add(2 * time.Minute)
	for time.Now().Before(deadline) {
		c.SetReadDeadline(time.Now().Add(30 * time.Second))
		kind, raw, err := c.ReadMessage()
		if err != nil {
			log.Fatal("read:", err)
		}
		if kind != websocket.TextMessage {
			continue
		}

		var msg envelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("skipping unparseable message: %v", err)
			continue
		}

		switch msg.Type {
		case "conversation_started":
			fmt.Println("Conversation started")
		case "question":
			fmt.Printf("Question: %s\n", msg.Question)
		case "speaking_start":
			fmt.Printf("Playing %d bytes of audio\n", len(msg.Audio))
			// A real device plays the clip; here we acknowledge right away.
			send(c, map[string]any{"type": "playback_complete", "playback_id": msg.PlaybackID})
		case "capture_start":
			fmt.Println("Mic open, sending utterance")
			streamUtterance(c, *utterance)
			send(c, map[string]any{
				"type":       "emotion_sample",
				"emotion":    "happy",
				"confidence": 0.9,
			})
			send(c, map[string]any{"type": "capture_stop"})
		case "capture_progress":
			fmt.Printf("Capturing... %ds\n", msg.Seconds)
		case "response":
			fmt.Printf("Response: %s\n", msg.Text)
			turns++
			if turns >= 2 {
				send(c, map[string]any{"type": "conversation_end"})
				fmt.Println("Conversation ended")
				return
			}
		case "error":
			log.Fatalf("server error %s: %s", msg.Code, msg.Message)
		}
	}
	log.Fatal("timed out waiting for the conversation to finish")
}

func fetchToken(server, userID, clientSecret string) (string, error) {
	body, err := json.Marshal(tokenRequest{UserID: userID, ClientSecret: clientSecret})
	if err != nil {
		return "", err
	}

	resp, err := http.Post(
		fmt.Sprintf("http://%s/api/v1/auth/token", server),
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed (%d): %s", resp.StatusCode, payload)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}
	return tr.Token, nil
}

// streamUtterance sends silence-filled PCM frames for the requested duration,
// pacing them like a 16kHz microphone would.
func streamUtterance(c *websocket.Conn, duration time.Duration) {
	const frameMs = 100
	frame := make([]byte, 16000*2*frameMs/1000)

	frames := int(duration.Milliseconds()) / frameMs
	for i := 0; i < frames; i++ {
		if err := c.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			log.Fatal("write audio:", err)
		}
		time.Sleep(frameMs * time.Millisecond)
	}
}

func send(c *websocket.Conn, msg map[string]any) {
	if err := c.WriteJSON(msg); err != nil {
		log.Fatal("write:", err)
	}
}

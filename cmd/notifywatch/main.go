// notifywatch logs into a roadmap-tracker server, runs the notification
// pipeline and prints the feed as it changes. Useful for poking at the sync
// behavior without a browser.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aqtanberli/roadmap-tracker/pkg/logger"
	"github.com/aqtanberli/roadmap-tracker/pkg/notifysync"
	log "github.com/sirupsen/logrus"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	emailFlag := flag.String("email", "", "login email")
	password := flag.String("password", "", "login password")
	flag.Parse()

	logger.InitLogger()

	if *emailFlag == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: notifywatch -email you@example.com -password secret [-server http://host]")
		os.Exit(1)
	}

	token, userID, role, err := login(*server, *emailFlag, *password)
	if err != nil {
		log.WithError(err).Fatal("Login failed")
	}

	streamURL := strings.Replace(*server, "http", "ws", 1) + "/ws/notifications"
	gate := notifysync.NewGate(notifysync.GateConfig{
		BaseURL:   *server,
		StreamURL: streamURL,
	})
	gate.Update(notifysync.Identity{
		Authenticated: true,
		UserID:        userID,
		Role:          role,
		Token:         token,
	})
	defer gate.Close()

	sess := gate.Session()
	if sess == nil {
		log.WithField("role", role).Fatal("Role is not eligible for the notification feed")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	lastCount := -1
	for {
		select {
		case <-stop:
			fmt.Println("bye")
			return
		case <-ticker.C:
			count := sess.UnreadCount()
			if count == lastCount {
				continue
			}
			lastCount = count
			fmt.Printf("--- %s unread: %d (stream %s)\n", time.Now().Format("15:04:05"), count, sess.Status())
			for _, ev := range sess.Items() {
				marker := " "
				if !ev.Read {
					marker = "*"
				}
				fmt.Printf("%s [%s] %s: %s\n", marker, ev.CreatedAt.Format("Jan 2 15:04"), ev.Title, ev.Message)
			}
		}
	}
}

// login authenticates against the server and returns token, user id, role.
func login(server, email, password string) (string, string, string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(server+"/users/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", "", "", fmt.Errorf("login request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", "", fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}

	var payload struct {
		Token string `json:"token"`
		User  struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", "", "", fmt.Errorf("failed to decode login response: %v", err)
	}
	return payload.Token, payload.User.ID, payload.User.Role, nil
}

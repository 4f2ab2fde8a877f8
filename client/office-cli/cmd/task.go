package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var rawEvents bool

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Submit tasks and watch the agents",
}

var submitCmd = &cobra.Command{
	Use:   "submit [task description]",
	Short: "Submit a new task to the manager agent",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		submitTask(strings.Join(args, " "))
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream dashboard events in real time",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		watchEvents()
	},
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(submitCmd)
	taskCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&rawEvents, "raw", false, "print every event as indented JSON")
}

func submitTask(description string) {
	if err := call(http.MethodPost, "/api/task", map[string]string{"content": description}, nil); err != nil {
		log.Fatalf("Error submitting task: %v", err)
	}
	fmt.Println("Task submitted successfully!")
	fmt.Println("To watch the agents, run: office-cli task watch")
}

type dashboardEvent struct {
	Type    string          `json:"type"`
	Agent   string          `json:"agent"`
	Status  string          `json:"status"`
	Title   string          `json:"title"`
	Preview string          `json:"result_preview"`
	Message json.RawMessage `json:"message"`
	Quest   *questRef       `json:"quest"`
}

type questRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type chatLine struct {
	Name    string `json:"name"`
	Emoji   string `json:"emoji"`
	Content string `json:"content"`
	Time    string `json:"time"`
}

func watchEvents() {
	u, err := websocketURL()
	if err != nil {
		log.Fatalf("Invalid server URL: %v", err)
	}
	log.Printf("Connecting to %s", u)

	c, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	fmt.Println("WebSocket connected. Waiting for events...")

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			log.Println("read:", err)
			return
		}
		if rawEvents {
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, message, "", "  "); err != nil {
				log.Printf("Error formatting JSON: %v. Raw message: %s", err, message)
				continue
			}
			fmt.Println(pretty.String())
			continue
		}
		var e dashboardEvent
		if err := json.Unmarshal(message, &e); err != nil {
			log.Printf("Error decoding event: %v", err)
			continue
		}
		if line := describe(e); line != "" {
			fmt.Println(line)
		}
	}
}

func describe(e dashboardEvent) string {
	switch e.Type {
	case "init":
		return "[init] connected to the office"
	case "chat":
		var m chatLine
		if json.Unmarshal(e.Message, &m) == nil {
			return fmt.Sprintf("[%s] %s %s: %s", m.Time, m.Emoji, m.Name, m.Content)
		}
	case "agent_update":
		return fmt.Sprintf("[agent] %s is %s", e.Agent, e.Status)
	case "quest_created":
		if e.Quest != nil {
			return fmt.Sprintf("[quest] #%d %s", e.Quest.ID, e.Quest.Title)
		}
	case "task_completed":
		return fmt.Sprintf("[done] %s: %s", e.Title, e.Preview)
	}
	return ""
}

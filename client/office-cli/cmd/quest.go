package cmd

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var questStatus string

var questCmd = &cobra.Command{
	Use:   "quest",
	Short: "List and answer the quests the agents created for you",
}

var questListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quests",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		listQuests()
	},
}

var questCompleteCmd = &cobra.Command{
	Use:   "complete [quest-id] [response]",
	Short: "Complete a quest with an optional response",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			log.Fatalf("Invalid quest id %q", args[0])
		}
		completeQuest(id, strings.Join(args[1:], " "))
	},
}

func init() {
	rootCmd.AddCommand(questCmd)
	questCmd.AddCommand(questListCmd)
	questCmd.AddCommand(questCompleteCmd)
	questListCmd.Flags().StringVar(&questStatus, "status", "pending", "filter by status (pending, completed, all)")
}

func listQuests() {
	path := "/api/quests"
	if questStatus != "" && questStatus != "all" {
		path += "?status=" + questStatus
	}
	var result struct {
		Quests []struct {
			ID        int64  `json:"id"`
			Title     string `json:"title"`
			QuestType string `json:"quest_type"`
			Agent     string `json:"agent"`
			Status    string `json:"status"`
			XPReward  int    `json:"xp_reward"`
		} `json:"quests"`
	}
	if err := call(http.MethodGet, path, nil, &result); err != nil {
		log.Fatalf("Error listing quests: %v", err)
	}
	if len(result.Quests) == 0 {
		fmt.Println("No quests.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tAGENT\tSTATUS\tXP\tTITLE")
	for _, q := range result.Quests {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", q.ID, q.QuestType, q.Agent, q.Status, q.XPReward, q.Title)
	}
	w.Flush()
}

func completeQuest(id int64, response string) {
	path := fmt.Sprintf("/api/quests/%d/complete", id)
	if err := call(http.MethodPut, path, map[string]string{"response": response}, nil); err != nil {
		log.Fatalf("Error completing quest: %v", err)
	}
	fmt.Printf("Quest #%d completed.\n", id)
}

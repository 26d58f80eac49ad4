package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the processing queue of a running atci server",
}

type jobView struct {
	ProcessType string `json:"process_type"`
	Path        string `json:"path"`
	Time        string `json:"time,omitempty"`
}

type statusResponse struct {
	Queue             []jobView `json:"queue"`
	Processing        string    `json:"processing"`
	CurrentProcessing *jobView  `json:"current_processing"`
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func apiBaseURL() string {
	return "http://" + loadConfig().Snapshot().ListenAddr
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending jobs and the currently-processing job",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := httpClient.Get(apiBaseURL() + "/api/queue/status")
		if err != nil {
			exitWithError(fmt.Errorf("reach atci server: %w", err))
		}
		defer resp.Body.Close()

		var status statusResponse
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			exitWithError(fmt.Errorf("decode status response: %w", err))
		}

		if status.CurrentProcessing != nil {
			c := status.CurrentProcessing
			printf("processing: %s %s %s\n\n", c.ProcessType, c.Path, c.Time)
		} else {
			printf("processing: idle\n\n")
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"#", "Process Type", "Path", "Time"})
		table.SetAutoWrapText(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(false)
		for i, j := range status.Queue {
			table.Append([]string{strconv.Itoa(i), j.ProcessType, j.Path, j.Time})
		}
		table.Render()
	},
}

var queueRemoveCmd = &cobra.Command{
	Use:   "remove <process_type> <path> [time]",
	Short: "Remove a job from the pending queue",
	Args:  cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		v := jobView{ProcessType: args[0], Path: args[1]}
		if len(args) == 3 {
			v.Time = args[2]
		}
		body, _ := json.Marshal(v)

		req, err := http.NewRequest(http.MethodDelete, apiBaseURL()+"/api/queue/remove", bytes.NewReader(body))
		if err != nil {
			exitWithError(err)
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			exitWithError(fmt.Errorf("reach atci server: %w", err))
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			exitWithError(fmt.Errorf("server returned %s", resp.Status))
		}
		printf("removed\n")
	},
}

var queueCancelCmd = &cobra.Command{
	Use:   "cancel-current",
	Short: "Cancel the in-flight job and clear the current slot",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		req, err := http.NewRequest(http.MethodDelete, apiBaseURL()+"/api/queue/cancel-current", nil)
		if err != nil {
			exitWithError(err)
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			exitWithError(fmt.Errorf("reach atci server: %w", err))
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			exitWithError(fmt.Errorf("server returned %s", resp.Status))
		}
		printf("cancelled\n")
	},
}

var queueReorderCmd = &cobra.Command{
	Use:   "reorder <process_type:path[:time]> [...]",
	Short: "Replace the pending queue with a permutation of its current contents",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobs := make([]jobView, 0, len(args))
		for _, a := range args {
			parts := splitColon(a)
			if len(parts) < 2 {
				exitWithError(fmt.Errorf("malformed job spec %q, want process_type:path[:time]", a))
			}
			v := jobView{ProcessType: parts[0], Path: parts[1]}
			if len(parts) == 3 {
				v.Time = parts[2]
			}
			jobs = append(jobs, v)
		}

		body, _ := json.Marshal(struct {
			Queue []jobView `json:"queue"`
		}{Queue: jobs})

		resp, err := httpClient.Post(apiBaseURL()+"/api/queue/reorder", "application/json", bytes.NewReader(body))
		if err != nil {
			exitWithError(fmt.Errorf("reach atci server: %w", err))
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			exitWithError(fmt.Errorf("server returned %s", resp.Status))
		}
		printf("reordered\n")
	},
}

func splitColon(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s) && len(out) < 2; i++ {
		if s[i] == ':' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func init() {
	queueCmd.AddCommand(queueStatusCmd)
	queueCmd.AddCommand(queueRemoveCmd)
	queueCmd.AddCommand(queueCancelCmd)
	queueCmd.AddCommand(queueReorderCmd)
}

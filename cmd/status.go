package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/proxgrad/internal/server"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := strings.TrimSuffix(serverURL, "/")
	if len(args) == 0 {
		return listJobs(cmd.OutOrStdout(), base+"/api/v1/jobs")
	}
	jobID := args[0]
	return getJobStatus(cmd.OutOrStdout(), base+"/api/v1/jobs/"+jobID+"/status", jobID)
}

// getJSON fetches url and decodes a 200 response into v.
func getJSON(url string, v interface{}) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(w io.Writer, url string) error {
	var jobs []server.Job
	if _, err := getJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return nil
	}

	fmt.Fprintf(w, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(w, "Job ID: %s\n", job.ID)
		fmt.Fprintf(w, "  State: %s\n", job.State)
		fmt.Fprintf(w, "  Problem: %s (%s)\n", job.Config.Problem.Name, job.Config.Problem.Kind)
		if job.Iterations > 0 {
			fmt.Fprintf(w, "  Objective: %.6g -> %.6g after %d iterations\n", job.InitialObjective, job.Objective, job.Iterations)
		}
		fmt.Fprintln(w)
	}

	return nil
}

func getJobStatus(w io.Writer, url, jobID string) error {
	var status server.JobStatus
	if code, err := getJSON(url, &status); err != nil {
		if code == http.StatusNotFound {
			return fmt.Errorf("job not found: %s", jobID)
		}
		return err
	}

	fmt.Fprintf(w, "Job: %s\n", status.ID)
	fmt.Fprintf(w, "State: %s\n", status.State)
	fmt.Fprintln(w)

	cfg := status.Config
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Problem: %s (%s, dim %d)\n", cfg.Problem.Name, cfg.Problem.Kind, cfg.Problem.Dimension())
	if cfg.ProblemPath != "" {
		fmt.Fprintf(w, "  File: %s\n", cfg.ProblemPath)
	}
	if cfg.WarmStart {
		fmt.Fprintf(w, "  Warm start: seed %d\n", cfg.Seed)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Progress:")
	fmt.Fprintf(w, "  Iterations: %d (%d function evaluations)\n", status.Iterations, status.FunEvals)
	fmt.Fprintf(w, "  Objective: %.10g -> %.10g\n", status.InitialObjective, status.Objective)
	fmt.Fprintf(w, "  Gradient mapping: %.3g\n", status.GradMapNorm)
	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(w, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.ItersPerSecond > 0 {
		fmt.Fprintf(w, "  Throughput: %.0f iterations/sec\n", status.ItersPerSecond)
	}

	if status.Status != "" {
		fmt.Fprintf(w, "\nResult: %s", status.Status)
		if status.Reason != "" {
			fmt.Fprintf(w, " (%s)", status.Reason)
		}
		fmt.Fprintln(w)
		if len(status.X) > 0 {
			fmt.Fprintf(w, "x: %s\n", formatVector(status.X, 10))
		}
	}

	if status.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", status.Error)
	}

	return nil
}

// Command crew is the crewkit CLI client.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/crewkit/crewkit/internal/version"
)

const defaultServer = "http://localhost:8420"

func main() {
	var (
		serverURL = flag.String("server", defaultServer, "crewd server URL")
		token     = flag.String("token", os.Getenv("CREWKIT_TOKEN"), "JWT auth token")
	)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cli := &Client{
		BaseURL:    strings.TrimRight(*serverURL, "/"),
		Token:      *token,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "version":
		err = cmdVersion(rest)
	case "status":
		err = cli.cmdStatus(rest)
	case "tasks":
		err = cli.cmdTasks(rest)
	case "task":
		err = cli.cmdTask(rest)
	case "board":
		err = cli.cmdBoard(rest)
	case "route":
		err = cli.cmdRoute(rest)
	case "estimate":
		err = cli.cmdEstimate(rest)
	case "teams":
		err = cli.cmdTeams(rest)
	case "login":
		err = cli.cmdLogin(rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `crew — crewkit CLI

Usage:
  crew [flags] <command> [args]

Flags:
  --server  <url>    server URL (default: http://localhost:8420)
  --token   <token>  JWT auth token (or $CREWKIT_TOKEN)

Commands:
  version                  print version
  status                   show server status
  login <user>             log in and print a token (reads password from $CREWKIT_PASSWORD)
  tasks                    list tasks
  task create <subject>    create a task
  task run <id>            run a ready task
  board                    show the readiness board
  route <subject>          preview the routing decision for a subject
  estimate                 estimate cost of pending tasks
  teams                    list teams
`)
}

// --- version ---

func cmdVersion(_ []string) error {
	fmt.Printf("crew %s (commit %s, built %s)\n",
		version.Version, version.Commit, version.BuildDate)
	return nil
}

// Client holds HTTP client state for CLI commands.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// get performs a GET and decodes JSON into v.
func (c *Client) get(path string, v any) error {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// post performs a POST and decodes the JSON response into v (may be nil).
func (c *Client) post(path string, body io.Reader, v any) error {
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if v != nil && resp.ContentLength != 0 {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

func jsonBody(v any) io.Reader {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(v)
	return &buf
}

// --- status ---

func (c *Client) cmdStatus(_ []string) error {
	var result map[string]any
	if err := c.get("/api/status", &result); err != nil {
		return err
	}
	fmt.Printf("version: %s\n", strVal(result["version"]))
	fmt.Printf("uptime:  %s\n", strVal(result["uptime"]))
	return nil
}

// --- login ---

func (c *Client) cmdLogin(args []string) error {
	user := "admin"
	if len(args) > 0 {
		user = args[0]
	}
	var result map[string]string
	err := c.post("/api/login", jsonBody(map[string]string{
		"username": user,
		"password": os.Getenv("CREWKIT_PASSWORD"),
	}), &result)
	if err != nil {
		return err
	}
	fmt.Println(result["token"])
	return nil
}

// --- tasks ---

func (c *Client) cmdTasks(_ []string) error {
	var tasks []map[string]any
	if err := c.get("/api/tasks", &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return nil
	}
	fmt.Printf("%-36s %-30s %-12s %-8s %-10s\n", "ID", "SUBJECT", "STATUS", "PRI", "PROVIDER")
	fmt.Println(strings.Repeat("-", 100))
	for _, t := range tasks {
		fmt.Printf("%-36s %-30s %-12s %-8s %-10s\n",
			strVal(t["id"]), truncate(strVal(t["subject"]), 30),
			strVal(t["status"]), fmt.Sprint(t["priority"]), strVal(t["provider"]))
	}
	return nil
}

func (c *Client) cmdTask(args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: crew task <create|run> <subject|id>")
		os.Exit(1)
	}
	sub := args[0]
	switch sub {
	case "create":
		var created map[string]any
		err := c.post("/api/tasks", jsonBody(map[string]string{
			"subject": strings.Join(args[1:], " "),
		}), &created)
		if err != nil {
			return err
		}
		fmt.Printf("created task %s\n", strVal(created["id"]))
		return nil
	case "run":
		var result map[string]any
		if err := c.post("/api/tasks/"+args[1]+"/run", nil, &result); err != nil {
			return err
		}
		if sel, ok := result["selection"].(map[string]any); ok {
			fmt.Printf("running on %s (%s)\n", strVal(sel["provider"]), strVal(sel["model"]))
		}
		return nil
	default:
		return fmt.Errorf("unknown task subcommand: %s", sub)
	}
}

// --- board ---

func (c *Client) cmdBoard(_ []string) error {
	var board []struct {
		Task     map[string]any `json:"task"`
		Blockers []string       `json:"blockers"`
		Ready    bool           `json:"ready"`
	}
	if err := c.get("/api/board", &board); err != nil {
		return err
	}
	if len(board) == 0 {
		fmt.Println("no tasks")
		return nil
	}
	fmt.Printf("%-36s %-30s %-12s %-6s %s\n", "ID", "SUBJECT", "STATUS", "READY", "BLOCKERS")
	fmt.Println(strings.Repeat("-", 100))
	for _, e := range board {
		fmt.Printf("%-36s %-30s %-12s %-6v %d\n",
			strVal(e.Task["id"]), truncate(strVal(e.Task["subject"]), 30),
			strVal(e.Task["status"]), e.Ready, len(e.Blockers))
	}
	return nil
}

// --- route ---

func (c *Client) cmdRoute(args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: crew route <subject>")
		os.Exit(1)
	}
	var result map[string]any
	err := c.post("/api/route", jsonBody(map[string]any{
		"task": map[string]string{"subject": strings.Join(args, " ")},
	}), &result)
	if err != nil {
		return err
	}
	sel, _ := result["selection"].(map[string]any)
	fmt.Printf("provider: %s\n", strVal(result["display_name"]))
	fmt.Printf("model:    %s\n", strVal(sel["model"]))
	fmt.Printf("cost/1k:  $%v\n", sel["unit_cost"])
	return nil
}

// --- estimate ---

func (c *Client) cmdEstimate(_ []string) error {
	var result map[string]any
	if err := c.get("/api/estimate", &result); err != nil {
		return err
	}
	fmt.Printf("pending tasks: %v\n", result["tasks"])
	fmt.Printf("avg tokens:    %v\n", result["avg_tokens"])
	fmt.Printf("estimated:     $%v\n", result["estimated_cost_usd"])
	return nil
}

// --- teams ---

func (c *Client) cmdTeams(_ []string) error {
	var teams []map[string]any
	if err := c.get("/api/teams", &teams); err != nil {
		return err
	}
	if len(teams) == 0 {
		fmt.Println("no teams")
		return nil
	}
	fmt.Printf("%-36s %-20s %-12s %-10s\n", "ID", "NAME", "STRATEGY", "STATUS")
	fmt.Println(strings.Repeat("-", 80))
	for _, t := range teams {
		fmt.Printf("%-36s %-20s %-12s %-10s\n",
			strVal(t["id"]), strVal(t["name"]), strVal(t["strategy"]), strVal(t["status"]))
	}
	return nil
}

func strVal(v any) string {
	s, _ := v.(string)
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

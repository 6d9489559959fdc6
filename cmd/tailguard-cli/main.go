// tailguard-cli is the operator client for a running tailguard daemon.
//
// Usage:
//
//	tailguard-cli pool
//	tailguard-cli deposit --owner 0xlp --amount 10000
//	tailguard-cli withdraw --owner 0xlp --shares 5000
//	tailguard-cli quote --coverage 2000 --days 30
//	tailguard-cli buy --holder 0xholder --coverage 2000 --days 30 --trigger 5000 --agent 1
//	tailguard-cli claim --policy 1 --claimant 0xholder --amount 2000 --evidence proof.json
//	tailguard-cli settle --claim 1
//	tailguard-cli stake --validator v1 --amount 1000
//	tailguard-cli vote --request 1 --validator v1 --approve --proof proof.json
//	tailguard-cli trust --agent 1
//	tailguard-cli volatility [--set 3000 --source vix-proxy]
//	tailguard-cli agents [--register --wallet 0xabc --uri https://...]
//	tailguard-cli events [--limit 50]
//	tailguard-cli watch [--type claim_paid]
//
// Admin subcommands read TAILGUARD_ADMIN_SECRET from the environment. The
// daemon address comes from TAILGUARD_SERVER (default http://localhost:8080).
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "pool":
		get("/api/pool")
	case "deposit":
		cmdDeposit(os.Args[2:])
	case "withdraw":
		cmdWithdraw(os.Args[2:])
	case "quote":
		cmdQuote(os.Args[2:])
	case "buy":
		cmdBuy(os.Args[2:])
	case "policy":
		cmdPolicy(os.Args[2:])
	case "claim":
		cmdClaim(os.Args[2:])
	case "settle":
		cmdSettle(os.Args[2:])
	case "stake":
		cmdStake(os.Args[2:])
	case "vote":
		cmdVote(os.Args[2:])
	case "trust":
		cmdTrust(os.Args[2:])
	case "volatility":
		cmdVolatility(os.Args[2:])
	case "agents":
		cmdAgents(os.Args[2:])
	case "events":
		cmdEvents(os.Args[2:])
	case "watch":
		cmdWatch(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: tailguard-cli <command> [flags]

Commands:
  pool        Show pool statistics
  deposit     Deposit capital for pool shares
  withdraw    Redeem shares for capital
  quote       Price a coverage policy
  buy         Purchase a coverage policy
  policy      Show (or expire) a policy
  claim       Submit a claim against a policy
  settle      Settle a validated claim
  stake       Register validator stake
  vote        Vote on a validation request
  trust       Show (or update) an agent's trust record
  volatility  Show (or push) the volatility reading
  agents      List (or register) agents
  events      List recent journal events
  watch       Stream live events over WebSocket

Run 'tailguard-cli <command> --help' for details on each command.
`)
}

func serverURL() string {
	if v := os.Getenv("TAILGUARD_SERVER"); v != "" {
		return strings.TrimSuffix(v, "/")
	}
	return "http://localhost:8080"
}

// do performs a request and pretty-prints the JSON response. Admin requests
// attach TAILGUARD_ADMIN_SECRET.
func do(method, path string, body any, admin bool) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			fatal("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, serverURL()+path, &buf)
	if err != nil {
		fatal("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if admin {
		secret := os.Getenv("TAILGUARD_ADMIN_SECRET")
		if secret == "" {
			fatal("TAILGUARD_ADMIN_SECRET is required for admin commands")
		}
		req.Header.Set("X-Admin-Secret", secret)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fatal("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fatal("read response: %v", err)
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		data = pretty.Bytes()
	}
	fmt.Println(string(data))
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func get(path string) { do(http.MethodGet, path, nil, false) }

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// readEvidence loads a file and returns it base64-encoded; an empty path
// yields an empty payload.
func readEvidence(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fatal("read %s: %v", path, err)
	}
	return base64.StdEncoding.EncodeToString(data)
}

func cmdDeposit(args []string) {
	fs := flag.NewFlagSet("deposit", flag.ExitOnError)
	owner := fs.String("owner", "", "depositor address")
	amount := fs.Uint64("amount", 0, "capital units to deposit")
	fs.Parse(args)
	do(http.MethodPost, "/api/pool/deposit", map[string]any{"owner": *owner, "amount": *amount}, false)
}

func cmdWithdraw(args []string) {
	fs := flag.NewFlagSet("withdraw", flag.ExitOnError)
	owner := fs.String("owner", "", "position owner address")
	shares := fs.Uint64("shares", 0, "shares to redeem")
	fs.Parse(args)
	do(http.MethodPost, "/api/pool/withdraw", map[string]any{"owner": *owner, "shares": *shares}, false)
}

func cmdQuote(args []string) {
	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	coverage := fs.Uint64("coverage", 0, "coverage amount")
	days := fs.Uint64("days", 30, "coverage duration in days")
	fs.Parse(args)
	do(http.MethodPost, "/api/policies/quote", map[string]any{"coverage": *coverage, "duration_days": *days}, false)
}

func cmdBuy(args []string) {
	fs := flag.NewFlagSet("buy", flag.ExitOnError)
	holder := fs.String("holder", "", "policy holder address")
	coverage := fs.Uint64("coverage", 0, "coverage amount")
	days := fs.Uint64("days", 30, "coverage duration in days")
	trigger := fs.Uint64("trigger", 0, "trigger threshold in basis points")
	agent := fs.Uint64("agent", 0, "underwriting agent ID")
	fs.Parse(args)
	do(http.MethodPost, "/api/policies", map[string]any{
		"holder": *holder, "coverage": *coverage, "duration_days": *days,
		"trigger_threshold_bps": *trigger, "agent_id": *agent,
	}, false)
}

func cmdPolicy(args []string) {
	fs := flag.NewFlagSet("policy", flag.ExitOnError)
	id := fs.Uint64("id", 0, "policy ID")
	expire := fs.Bool("expire", false, "expire the policy if past its term")
	fs.Parse(args)
	if *expire {
		do(http.MethodPost, fmt.Sprintf("/api/policies/%d/expire", *id), nil, false)
		return
	}
	get(fmt.Sprintf("/api/policies/%d", *id))
}

func cmdClaim(args []string) {
	fs := flag.NewFlagSet("claim", flag.ExitOnError)
	policy := fs.Uint64("policy", 0, "policy ID")
	claimant := fs.String("claimant", "", "claimant address (must be the holder)")
	amount := fs.Uint64("amount", 0, "requested payout")
	evidence := fs.String("evidence", "", "path to the evidence file")
	fs.Parse(args)
	do(http.MethodPost, "/api/claims", map[string]any{
		"policy_id": *policy, "claimant": *claimant, "amount": *amount,
		"evidence": readEvidence(*evidence),
	}, false)
}

func cmdSettle(args []string) {
	fs := flag.NewFlagSet("settle", flag.ExitOnError)
	claim := fs.Uint64("claim", 0, "claim ID")
	fs.Parse(args)
	do(http.MethodPost, fmt.Sprintf("/api/claims/%d/settle", *claim), nil, false)
}

func cmdStake(args []string) {
	fs := flag.NewFlagSet("stake", flag.ExitOnError)
	validator := fs.String("validator", "", "validator address")
	amount := fs.Uint64("amount", 0, "stake to add")
	withdraw := fs.Bool("withdraw", false, "withdraw instead of add")
	fs.Parse(args)
	path := "/api/validators/stake"
	if *withdraw {
		path = "/api/validators/unstake"
	}
	do(http.MethodPost, path, map[string]any{"validator": *validator, "amount": *amount}, false)
}

func cmdVote(args []string) {
	fs := flag.NewFlagSet("vote", flag.ExitOnError)
	request := fs.Uint64("request", 0, "validation request ID")
	validator := fs.String("validator", "", "validator address")
	approve := fs.Bool("approve", false, "approve the claimed fact")
	proof := fs.String("proof", "", "path to the proof file")
	fs.Parse(args)
	do(http.MethodPost, fmt.Sprintf("/api/validation/%d/votes", *request), map[string]any{
		"validator": *validator, "approved": *approve, "proof": readEvidence(*proof),
	}, false)
}

func cmdTrust(args []string) {
	fs := flag.NewFlagSet("trust", flag.ExitOnError)
	agent := fs.Uint64("agent", 0, "agent ID")
	caller := fs.String("caller", "", "updater address (required to update)")
	accuracy := fs.Uint64("accuracy", 0, "claim accuracy in basis points")
	preservation := fs.Uint64("preservation", 0, "capital preservation in basis points")
	responsiveness := fs.Uint64("responsiveness", 0, "responsiveness in basis points")
	decay := fs.Bool("decay", false, "materialize time decay instead")
	fs.Parse(args)

	switch {
	case *decay:
		do(http.MethodPost, fmt.Sprintf("/api/trust/%d/decay", *agent), nil, false)
	case *caller != "":
		do(http.MethodPost, fmt.Sprintf("/api/trust/%d", *agent), map[string]any{
			"caller": *caller, "claim_accuracy": *accuracy,
			"capital_preservation": *preservation, "responsiveness": *responsiveness,
		}, false)
	default:
		get(fmt.Sprintf("/api/trust/%d", *agent))
	}
}

func cmdVolatility(args []string) {
	fs := flag.NewFlagSet("volatility", flag.ExitOnError)
	set := fs.Uint64("set", 0, "push this VIX-proxy value in basis points (admin)")
	source := fs.String("source", "manual", "reading source label")
	fs.Parse(args)
	push := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "set" {
			push = true
		}
	})
	if push {
		do(http.MethodPost, "/api/admin/volatility", map[string]any{"value_bps": *set, "source": *source}, true)
		return
	}
	get("/api/volatility")
}

func cmdAgents(args []string) {
	fs := flag.NewFlagSet("agents", flag.ExitOnError)
	register := fs.Bool("register", false, "register a new agent")
	wallet := fs.String("wallet", "", "payout wallet address")
	uri := fs.String("uri", "", "registration document reference")
	fs.Parse(args)
	if *register {
		do(http.MethodPost, "/api/agents", map[string]any{"wallet": *wallet, "uri": *uri}, false)
		return
	}
	get("/api/agents")
}

func cmdEvents(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	limit := fs.Int("limit", 50, "maximum entries to return")
	fs.Parse(args)
	get(fmt.Sprintf("/api/events?limit=%d", *limit))
}

// cmdWatch streams the live event feed until interrupted.
func cmdWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	typ := fs.String("type", "", "only stream this event type")
	fs.Parse(args)

	u, err := url.Parse(serverURL())
	if err != nil {
		fatal("parse server url: %v", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/events/ws"
	if *typ != "" {
		u.RawQuery = "type=" + url.QueryEscape(*typ)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		fatal("dial %s: %v", u.String(), err)
	}
	defer conn.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		os.Exit(0)
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			fatal("feed closed: %v", err)
		}
		fmt.Println(string(msg))
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/peterh/liner"

	"github.com/kestrelab/memvault/pkg/assistant"
	"github.com/kestrelab/memvault/pkg/config"
	"github.com/kestrelab/memvault/pkg/errors"
	"github.com/kestrelab/memvault/pkg/gate"
	"github.com/kestrelab/memvault/pkg/log"
)

// Constants for the command-line interface
const (
	cmdHelp       = "!help"
	cmdQuit       = "!quit"
	cmdUnlock     = "!unlock"
	cmdCredential = "!credential"
	cmdRemember   = "!remember"
	cmdLookup     = "!lookup"
	cmdGood       = "!good"
	cmdBad        = "!bad"
	cmdQuery      = "!query"
	cmdState      = "!state"
	cmdConfig     = "!config"
)

// Command-line help text
const helpText = `
MemVault Agent - Command Reference:
-----------------------------------
!help                 - Show this help message
!credential           - Mint a credential for this device
!unlock <credential>  - Unlock the memory store
!remember <in | out>  - Store an interaction ("input | response")
!lookup <query>       - Show the retrieval context for a query
!query <question>     - Ask a question using stored context
!good                 - Mark the last interaction as helpful
!bad                  - Mark the last interaction as unhelpful
!state                - Show the access gate state
!config               - Show current configuration
!quit                 - Exit the application

Notes:
- Regular text input is treated as a query
- The store stays locked until a valid credential is presented
- Tab completion is available for commands`

// historyFile is the file where command history is stored
const historyFile = ".memvault_history"

func main() {
	// Secrets (seed, wildcard, API key) usually arrive via .env in
	// development.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Setup(log.Config{
		Level:  log.Level(cfg.Logging.Level),
		Format: log.Format(cfg.Logging.Format),
	})
	log.Info("Starting MemVault agent")

	agent, err := assistant.NewFromConfig(context.Background(), cfg)
	if err != nil {
		log.Error("Failed to initialize assistant", "error", err)
		os.Exit(1)
	}
	defer agent.Close()

	runCLI(agent, cfg)
}

// loadConfig looks for a config file in the standard locations and
// falls back to the in-memory defaults.
func loadConfig() (*config.Config, error) {
	configPaths := []string{
		"./configs/memvault.yaml",
		"./memvault.yaml",
		"../configs/memvault.yaml",
	}

	for _, path := range configPaths {
		if _, statErr := os.Stat(path); statErr == nil {
			log.Info("Loading configuration", "path", path)
			cfg, err := config.LoadFromFile(path)
			if err != nil {
				log.Warn("Failed to load config file", "path", path, "error", err)
				continue
			}
			return cfg, nil
		}
	}

	// No file found: defaults plus environment. The seed still has to
	// come from somewhere, so insist on the environment variable here.
	cfg := config.Default()
	cfg.Vault.Seed = os.Getenv("MEMVAULT_VAULT_SEED")
	if cfg.Vault.Seed == "" {
		return nil, fmt.Errorf("no config file found and MEMVAULT_VAULT_SEED is not set")
	}
	if wildcard := os.Getenv("MEMVAULT_WILDCARD_CREDENTIAL"); wildcard != "" {
		cfg.Gate.WildcardCredential = wildcard
	}
	log.Info("Using default configuration with memory backend")
	return cfg, nil
}

// runCLI starts the command-line interface for user interaction
func runCLI(agent *assistant.Assistant, cfg *config.Config) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(false)

	line.SetCompleter(func(line string) (c []string) {
		commands := []string{
			cmdHelp, cmdQuit, cmdUnlock, cmdCredential, cmdRemember,
			cmdLookup, cmdGood, cmdBad, cmdQuery, cmdState, cmdConfig,
		}
		for _, cmd := range commands {
			if strings.HasPrefix(cmd, line) {
				c = append(c, cmd)
			}
		}
		return
	})

	// Load history from file if it exists
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	// Save history when exiting
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println("\n=== MemVault Agent ===")
	fmt.Println("Store Backend:", cfg.Store.Backend)
	fmt.Println("Gate State:", agent.GateState())
	fmt.Println("Type !help for available commands.")

	ctx := context.Background()

	for {
		input, err := line.Prompt(fmt.Sprintf("memvault[%s]> ", agent.GateState()))
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nGoodbye!")
				break
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if !strings.HasPrefix(input, "!") {
			runQuery(ctx, agent, input)
			continue
		}

		parts := strings.SplitN(input, " ", 2)
		arg := ""
		if len(parts) == 2 {
			arg = strings.TrimSpace(parts[1])
		}

		switch parts[0] {
		case cmdHelp:
			fmt.Println(helpText)

		case cmdQuit:
			fmt.Println("Goodbye!")
			return

		case cmdCredential:
			// Minting is local-only: the credential embeds this
			// device's fingerprint and is useless anywhere else.
			fmt.Println(gate.IssueCredential(assistant.Fingerprint()))

		case cmdUnlock:
			if arg == "" {
				arg, err = line.PasswordPrompt("Credential: ")
				if err != nil || strings.TrimSpace(arg) == "" {
					fmt.Println("Unlock cancelled")
					continue
				}
				arg = strings.TrimSpace(arg)
			}
			ok, err := agent.Unlock(ctx, arg)
			switch {
			case errors.Is(err, errors.ErrAccessSuspended):
				fmt.Println("Access suspended: too many failed attempts. Restart to try again.")
			case err != nil:
				fmt.Printf("Error: %v\n", err)
			case ok:
				fmt.Println("Unlocked.")
			default:
				fmt.Println("Credential rejected.")
			}

		case cmdRemember:
			if arg == "" {
				fmt.Println("Usage: !remember <input | response>")
				continue
			}
			in, out, found := strings.Cut(arg, "|")
			if !found {
				fmt.Println("Usage: !remember <input | response>")
				continue
			}
			id, err := agent.StoreInteraction(ctx, strings.TrimSpace(in), strings.TrimSpace(out))
			if err != nil {
				printGateAware(err, "Error storing interaction")
			} else {
				fmt.Printf("Stored interaction %d.\n", id)
			}

		case cmdLookup:
			if arg == "" {
				fmt.Println("Usage: !lookup <query>")
				continue
			}
			rendered, err := agent.BuildContext(ctx, arg, 0)
			switch {
			case err != nil:
				printGateAware(err, "Error building context")
			case rendered == "":
				fmt.Println("No matching memories.")
			default:
				fmt.Println(rendered)
			}

		case cmdGood:
			if err := agent.SubmitFeedback(ctx, "positive"); err != nil {
				printGateAware(err, "Error submitting feedback")
			} else {
				fmt.Println("Noted.")
			}

		case cmdBad:
			if err := agent.SubmitFeedback(ctx, "negative"); err != nil {
				printGateAware(err, "Error submitting feedback")
			} else {
				fmt.Println("Noted.")
			}

		case cmdQuery:
			if arg == "" {
				fmt.Println("Usage: !query <question>")
				continue
			}
			runQuery(ctx, agent, arg)

		case cmdState:
			fmt.Println("Gate state:", agent.GateState())

		case cmdConfig:
			fmt.Println("\nCurrent Configuration:")
			fmt.Println("======================")
			fmt.Printf("Store Backend: %s\n", cfg.Store.Backend)
			if cfg.Store.Backend == "sqlite" || cfg.Store.Backend == "postgres" {
				fmt.Printf("SQL Driver: %s\n", cfg.Store.SQL.Driver)
			}
			if cfg.Store.Backend == "boltdb" {
				fmt.Printf("Bolt Path: %s\n", cfg.Store.Bolt.Path)
			}
			fmt.Printf("Lockout Threshold: %d\n", cfg.Gate.LockoutThreshold)
			fmt.Printf("Retrieval TopK: %d\n", cfg.Retrieval.TopK)
			fmt.Printf("Reasoning Provider: %s\n", cfg.Reasoning.Provider)
			fmt.Printf("Scripting Enabled: %t\n", cfg.Scripting.Enabled)
			fmt.Printf("Log Level: %s\n", cfg.Logging.Level)

		default:
			fmt.Printf("Unknown command: %s\nType !help for available commands.\n", parts[0])
		}
	}
}

func runQuery(ctx context.Context, agent *assistant.Assistant, question string) {
	response, err := agent.Query(ctx, question)
	if err != nil {
		printGateAware(err, "Error processing query")
		return
	}
	fmt.Println(response)
}

// printGateAware maps the gate sentinels to friendlier messages.
func printGateAware(err error, prefix string) {
	switch {
	case errors.Is(err, errors.ErrAccessDenied):
		fmt.Println("Locked. Use !unlock <credential> first.")
	case errors.Is(err, errors.ErrAccessSuspended):
		fmt.Println("Access suspended: too many failed attempts. Restart to try again.")
	default:
		fmt.Printf("%s: %v\n", prefix, err)
	}
}

// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/calderahealth/intake/pkg/logging"
	"github.com/calderahealth/intake/services/interview/bank"
	"github.com/calderahealth/intake/services/interview/flow"
	"github.com/calderahealth/intake/services/interview/observability"
	"github.com/calderahealth/intake/services/interview/store"
)

// --- Global Command Variables ---
var (
	bankPath string
	verbose  bool
	answers  int

	rootCmd = &cobra.Command{
		Use:   "intakectl",
		Short: "A cli to inspect and exercise the intake interview engine",
		Long: `intakectl works directly against a question bank file, without a
running interview service. It validates bank files, prints the exact
order questions will be presented in, and simulates complete
interviews.`,
	}

	// --- Bank inspection ---
	bankCmd = &cobra.Command{
		Use:   "bank",
		Short: "Inspect and validate question bank files",
	}
	bankValidateCmd = &cobra.Command{
		Use:   "validate [bank file]",
		Short: "Loads a bank file and reports schema problems",
		Run:   runBankValidate,
	}
	bankOrderCmd = &cobra.Command{
		Use:   "order [bank file]",
		Short: "Prints the deterministic presentation order of the bank",
		Run:   runBankOrder,
	}

	// --- Simulation ---
	simulateCmd = &cobra.Command{
		Use:   "simulate [bank file]",
		Short: "Runs a complete interview against in-memory stores",
		Run:   runSimulate,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&bankPath, "bank", "", "Path to the question bank file (overrides intakectl.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	simulateCmd.Flags().IntVar(&answers, "answers", 0, "Stop after this many answers (0 = run to completion)")

	bankCmd.AddCommand(bankValidateCmd)
	bankCmd.AddCommand(bankOrderCmd)
	rootCmd.AddCommand(bankCmd)
	rootCmd.AddCommand(simulateCmd)
}

// cliLogger routes engine logs to stderr so stdout stays clean for
// command output.
func cliLogger() *logging.Logger {
	level := logging.LevelWarn
	if verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  config.LogDir,
		Service: "intakectl",
	})
	slog.SetDefault(logger.Slog())
	return logger
}

// resolveBankPath picks the bank file from args, the --bank flag, or
// intakectl.yaml, in that order.
func resolveBankPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if bankPath != "" {
		return bankPath
	}
	if config.BankPath != "" {
		return config.BankPath
	}
	log.Fatalf("No bank file given. Pass a path, use --bank, or set bank_path in intakectl.yaml.")
	return ""
}

func loadBank(args []string) *bank.Bank {
	path := resolveBankPath(args)
	b, err := bank.LoadFile(path)
	if err != nil {
		log.Fatalf("Bank file %s is invalid: %v", path, err)
	}
	return b
}

func runBankValidate(cmd *cobra.Command, args []string) {
	logger := cliLogger()
	defer logger.Close()

	b := loadBank(args)
	fmt.Printf("OK: %d questions across %d categories\n", b.Len(), len(b.FlowOrder()))
	if first := flow.NewSequencer(b).Next(nil); first != nil {
		fmt.Printf("First question: [%s] %s\n", first.Label, first.Text)
	}
}

func runBankOrder(cmd *cobra.Command, args []string) {
	logger := cliLogger()
	defer logger.Close()

	b := loadBank(args)
	seq := flow.NewSequencer(b)

	// Walk the bank the way a session would: select, mark answered,
	// repeat. Dependencies make this differ from a plain sort of the
	// whole bank.
	answered := make(map[string]struct{}, b.Len())
	position := 1
	for {
		next := seq.Next(answered)
		if next == nil {
			break
		}
		fmt.Printf("%3d. [%s/%s] %s (priority %d)\n",
			position, next.Category, next.Subcategory, next.Label, next.Priority)
		answered[next.Label] = struct{}{}
		position++
	}

	if len(answered) < b.Len() {
		fmt.Printf("\nWARNING: %d questions are unreachable (dependency never satisfiable)\n",
			b.Len()-len(answered))
		os.Exit(1)
	}
}

func runSimulate(cmd *cobra.Command, args []string) {
	logger := cliLogger()
	defer logger.Close()

	b := loadBank(args)

	cache := store.NewMemoryStore(store.MemoryConfig{Logger: logger.Slog()})
	defer cache.Close()
	checkpoint := store.NewMemoryStore(store.MemoryConfig{Logger: logger.Slog()})
	defer checkpoint.Close()

	controller, err := flow.NewController(flow.ControllerConfig{
		Bank:       b,
		Cache:      cache,
		Checkpoint: checkpoint,
		Logger:     logger.Slog(),
		Metrics:    observability.NewTestMetrics(),
	})
	if err != nil {
		log.Fatalf("Could not create the interview controller: %v", err)
	}

	ctx := context.Background()
	sessionID := "simulated-session"
	turn := 0
	message := "hello"
	for {
		result, err := controller.Process(ctx, sessionID, message)
		if err != nil {
			log.Fatalf("Interview turn failed: %v", err)
		}
		fmt.Printf("[%d/%d] %s\n", result.AnsweredCount, result.TotalQuestions, result.Prompt)
		if result.Complete {
			return
		}
		turn++
		if answers > 0 && turn > answers {
			fmt.Printf("stopped after %d answers\n", answers)
			return
		}
		message = fmt.Sprintf("simulated answer %d", turn)
	}
}

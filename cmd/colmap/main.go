// Package main provides the colmap CLI entry point.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/orneryd/colmap/pkg/config"
	"github.com/orneryd/colmap/pkg/fuzzy"
	"github.com/orneryd/colmap/pkg/lookup"
	"github.com/orneryd/colmap/pkg/override"
	"github.com/orneryd/colmap/pkg/resolve"
	"github.com/orneryd/colmap/pkg/schema"
	"github.com/orneryd/colmap/pkg/store"
	"github.com/orneryd/colmap/pkg/xlog"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "colmap",
		Short: "colmap - Column Mapping Resolution Engine",
		Long: `colmap resolves spreadsheet column headers to canonical schema fields.

Each column runs through three stages in order:
  • User-authored override rules (priority-ordered, scoped, conditional)
  • Exact alias lookup against the target schema
  • Multi-algorithm fuzzy matching (Levenshtein, Jaro-Winkler, n-gram, Soundex)`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := config.LoadFromEnv()
			xlog.SetLevel(xlog.ParseLevel(cfg.Logging.Level))
		},
	}

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("colmap v%s (%s)\n", version, commit)
		},
	})

	// Resolve command
	resolveCmd := &cobra.Command{
		Use:   "resolve [column]...",
		Short: "Resolve column headers against the target schema",
		Long:  "Resolve one or more column headers through overrides, exact lookup, and fuzzy matching",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runResolve,
	}
	resolveCmd.Flags().String("schema", "", "Schema YAML file (default: built-in FedRAMP schema)")
	resolveCmd.Flags().String("doc-type", "inventory", "Document type for override scoping")
	resolveCmd.Flags().String("file-name", "", "Source file name for override conditions")
	resolveCmd.Flags().Float64("min-confidence", 0, "Fuzzy confidence threshold (default from env)")
	resolveCmd.Flags().Bool("no-rules", false, "Skip stored override rules")
	rootCmd.AddCommand(resolveCmd)

	// Match command (fuzzy scoring without a schema)
	matchCmd := &cobra.Command{
		Use:   "match [source] [target]...",
		Short: "Score a column name against candidate targets",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runMatch,
	}
	matchCmd.Flags().Bool("explain", false, "Include per-algorithm score breakdowns")
	rootCmd.AddCommand(matchCmd)

	// Rules command group
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage override rules",
	}

	addCmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Add an override rule",
		Args:  cobra.ExactArgs(1),
		RunE:  runRulesAdd,
	}
	addCmd.Flags().String("pattern", "", "Pattern text to match (required)")
	addCmd.Flags().String("target", "", "Target field the rule maps to (required)")
	addCmd.Flags().String("type", "exact_match", "Pattern type (exact_match, contains_match, ...)")
	addCmd.Flags().String("description", "", "Rule description")
	addCmd.Flags().Int("priority", 0, "Rule priority (-1000 to 1000)")
	addCmd.Flags().String("doc-type", "", "Restrict the rule to a document type")
	addCmd.Flags().String("created-by", "cli", "Rule author")
	_ = addCmd.MarkFlagRequired("pattern")
	_ = addCmd.MarkFlagRequired("target")
	rulesCmd.AddCommand(addCmd)

	rulesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored override rules",
		RunE:  runRulesList,
	})

	rulesCmd.AddCommand(&cobra.Command{
		Use:   "remove [id]",
		Short: "Remove an override rule by ID",
		Args:  cobra.ExactArgs(1),
		RunE:  runRulesRemove,
	})

	rulesCmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Export all rules as JSON to stdout",
		RunE:  runRulesExport,
	})

	rulesCmd.AddCommand(&cobra.Command{
		Use:   "import [file]",
		Short: "Import rules from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE:  runRulesImport,
	})

	rootCmd.AddCommand(rulesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if !cfg.Store.InMemory {
		if err := os.MkdirAll(cfg.Store.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	return store.Open(store.Options{
		DataDir:    cfg.Store.DataDir,
		InMemory:   cfg.Store.InMemory,
		SyncWrites: cfg.Store.SyncWrites,
	})
}

func loadSchema(path string) (*schema.Schema, error) {
	if path == "" {
		return schema.Default(), nil
	}
	return schema.LoadFile(path)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	schemaPath, _ := cmd.Flags().GetString("schema")
	docType, _ := cmd.Flags().GetString("doc-type")
	fileName, _ := cmd.Flags().GetString("file-name")
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
	noRules, _ := cmd.Flags().GetBool("no-rules")

	s, err := loadSchema(schemaPath)
	if err != nil {
		return fmt.Errorf("loading schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	matcher := fuzzy.NewMatcher(cfg.FuzzyConfig())
	index := lookup.NewIndex(s, matcher)

	var engine *override.Engine
	if !noRules {
		engine = override.NewEngine(cfg.EngineOptions())
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		if _, err := st.LoadInto(engine); err != nil {
			return fmt.Errorf("loading rules: %w", err)
		}
	}

	if minConfidence <= 0 {
		minConfidence = cfg.Fuzzy.MinConfidence
	}
	pipeline := resolve.NewPipeline(index, engine, minConfidence)

	ctx := &override.Context{DocumentType: docType, FileName: fileName}
	report := pipeline.MapColumns(args, docType, ctx)
	return printJSON(report)
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	explain, _ := cmd.Flags().GetBool("explain")

	fc := cfg.FuzzyConfig()
	fc.IncludeExplanations = fc.IncludeExplanations || explain
	fc.MinConfidence = 0 // report every target, let the caller judge

	matcher := fuzzy.NewMatcher(fc)
	results := matcher.FindMatches(args[0], args[1:])
	return printJSON(results)
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	pattern, _ := cmd.Flags().GetString("pattern")
	target, _ := cmd.Flags().GetString("target")
	patternType, _ := cmd.Flags().GetString("type")
	description, _ := cmd.Flags().GetString("description")
	priority, _ := cmd.Flags().GetInt("priority")
	docType, _ := cmd.Flags().GetString("doc-type")
	createdBy, _ := cmd.Flags().GetString("created-by")

	if description == "" {
		description = fmt.Sprintf("map %q to %s", pattern, target)
	}

	rule := override.NewRule(args[0], description, override.PatternType(patternType),
		override.Pattern{Pattern: pattern}, target, createdBy)
	rule.Priority = priority
	if docType != "" {
		rule.Scope = override.DocumentTypeScope(docType)
	}

	// Validate through a throwaway engine before persisting.
	engine := override.NewEngine(cfg.EngineOptions())
	conflicts, err := engine.AddRule(rule)
	if err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.PutRule(rule); err != nil {
		return fmt.Errorf("storing rule: %w", err)
	}

	fmt.Printf("Added rule %s (%s)\n", rule.ID, rule.Name)
	for _, c := range conflicts {
		fmt.Printf("  conflict [%s/%s]: %s\n", c.Type, c.Severity, c.Description)
	}
	return nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rules, err := st.ListRules()
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Println("No rules stored")
		return nil
	}

	for _, r := range rules {
		scope := string(r.Scope.Kind)
		if r.Scope.Value != "" {
			scope += ":" + r.Scope.Value
		}
		active := "active"
		if !r.Active {
			active = "inactive"
		}
		fmt.Printf("%s  p=%-5d %-20s %-14s %s -> %s  [%s, %s]\n",
			r.ID, r.Priority, r.Name, r.PatternType, r.Pattern.Pattern, r.TargetField, scope, active)
	}
	return nil
}

func runRulesRemove(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(strings.TrimSpace(args[0]))
	if err != nil {
		return fmt.Errorf("invalid rule ID: %w", err)
	}

	cfg := config.LoadFromEnv()
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteRule(id); err != nil {
		return err
	}
	fmt.Printf("Removed rule %s\n", id)
	return nil
}

func runRulesExport(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.ExportJSON(os.Stdout)
}

func runRulesImport(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening rules file: %w", err)
	}
	defer f.Close()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.ImportJSON(f)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d rules\n", n)
	return nil
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hrdesk/hr-assistant/internal/knowledge"
	"github.com/hrdesk/hr-assistant/internal/service"
	"github.com/hrdesk/hr-assistant/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the starter knowledge base articles that are missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeDB, err := knowledgeService()
		if err != nil {
			return err
		}
		defer closeDB()

		n, err := svc.SeedDefaults(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "inserted %d articles\n", n)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <question>",
	Short: "Show which article would answer a question without counting it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeDB, err := knowledgeService()
		if err != nil {
			return err
		}
		defer closeDB()

		preview, err := svc.Preview(context.Background(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printJSON(cmd, preview)
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Print the category table",
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := categoryTable()
		if err != nil {
			return err
		}
		return printJSON(cmd, table.Categories())
	},
}

func init() {
	rootCmd.AddCommand(seedCmd, searchCmd, categoriesCmd)
}

func categoryTable() (*knowledge.Table, error) {
	if cfg.CategoriesFile == "" {
		return knowledge.DefaultTable(), nil
	}
	return knowledge.LoadTable(cfg.CategoriesFile)
}

func knowledgeService() (*service.KnowledgeService, func(), error) {
	table, err := categoryTable()
	if err != nil {
		return nil, nil, err
	}
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	articles := store.NewArticleStore(db)
	matcher := knowledge.NewMatcher(articles, table, log)
	svc := service.NewKnowledgeService(articles, store.NewResponseStore(db), matcher, log)
	return svc, func() { _ = store.Close(db) }, nil
}

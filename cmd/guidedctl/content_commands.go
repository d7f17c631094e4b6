package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tendant/guided-content/pkg/guidedcontent"
)

func newContentCommand(cctx *commandContext) *cobra.Command {
	contentCmd := &cobra.Command{
		Use:   "content",
		Short: "Inspect and delete content items",
	}
	contentCmd.AddCommand(newContentListCommand(cctx))
	contentCmd.AddCommand(newContentGetCommand(cctx))
	contentCmd.AddCommand(newContentDeleteCommand(cctx))
	return contentCmd
}

func newContentListCommand(cctx *commandContext) *cobra.Command {
	var categoryID string

	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List content items of a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				items []*guidedcontent.ContentItem
				err   error
			)
			if categoryID != "" {
				items, err = cctx.app.Service.ListContentByCategory(cmd.Context(), args[0], categoryID)
			} else {
				items, err = cctx.app.Service.ListContent(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if cctx.jsonOutput {
				return writeJSON(cmd, nonNil(items))
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				title, _ := item.Fields["title"].(string)
				rows = append(rows, []string{
					item.ID,
					title,
					item.CategoryID,
					strconv.Itoa(len(item.Media)),
					strconv.FormatBool(item.IsPublished),
					item.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Category", "Media", "Published", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&categoryID, "category", "", "Only list items of this category")
	return cmd
}

func newContentGetCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <id>",
		Short: "Show one content item as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := cctx.app.Service.GetContent(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd, item)
		},
	}
}

func newContentDeleteCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete a content item and its stored media",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := cctx.app.Service.DeleteContent(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if cctx.jsonOutput {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deleted %s %s\n", args[0], result.ID)
			for _, url := range result.FailedCleanups {
				fmt.Fprintf(out, "  cleanup failed: %s\n", url)
			}
			return nil
		},
	}
}

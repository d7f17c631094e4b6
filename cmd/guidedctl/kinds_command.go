package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tendant/guided-content/pkg/guidedcontent"
)

func newKindsCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List configured content kinds",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := cctx.app.Service.ListKinds()
			if cctx.jsonOutput {
				return writeJSON(cmd, kinds)
			}

			rows := make([][]string, 0, len(kinds))
			for _, k := range kinds {
				media := make([]string, 0, len(k.AcceptedMediaKinds))
				for _, m := range k.AcceptedMediaKinds {
					media = append(media, string(m))
				}
				rows = append(rows, []string{
					k.ID,
					k.BlobNamespace,
					strings.Join(media, ","),
					strconv.FormatBool(k.SupportsGenderTag),
					strconv.Itoa(k.MaxAttachments),
					formatBytes(k.MaxBytesPerFile),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Kind", "Namespace", "Media", "Gender", "Max Files", "Max Size"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}

func newCategoriesCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "categories <kind>",
		Short: "List the categories of a kind with their item counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			categories, err := cctx.app.Service.ListCategories(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if cctx.jsonOutput {
				return writeJSON(cmd, nonNil(categories))
			}

			rows := make([][]string, 0, len(categories))
			for _, c := range categories {
				rows = append(rows, []string{c.ID, c.Name, strconv.Itoa(c.ItemCount), c.UpdatedAt.Format("2006-01-02 15:04")})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Items", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

type kindStats struct {
	Kind          string `json:"kind"`
	Categories    int    `json:"categories"`
	Items         int    `json:"items"`
	Published     int    `json:"published"`
	Uncategorized int    `json:"uncategorized"`
	BlobMedia     int    `json:"blobMedia"`
	External      int    `json:"externalMedia"`
}

func newStatsCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize content per kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := cctx.app.Service
			var stats []kindStats
			for _, k := range svc.ListKinds() {
				categories, err := svc.ListCategories(cmd.Context(), k.ID)
				if err != nil {
					return err
				}
				items, err := svc.ListContent(cmd.Context(), k.ID)
				if err != nil {
					return err
				}
				stats = append(stats, summarize(k.ID, len(categories), items))
			}
			if cctx.jsonOutput {
				return writeJSON(cmd, nonNil(stats))
			}

			rows := make([][]string, 0, len(stats))
			for _, s := range stats {
				rows = append(rows, []string{
					s.Kind,
					strconv.Itoa(s.Categories),
					strconv.Itoa(s.Items),
					strconv.Itoa(s.Published),
					strconv.Itoa(s.Uncategorized),
					strconv.Itoa(s.BlobMedia),
					strconv.Itoa(s.External),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Kind", "Categories", "Items", "Published", "Uncategorized", "Blobs", "External"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
}

func summarize(kind string, categories int, items []*guidedcontent.ContentItem) kindStats {
	s := kindStats{Kind: kind, Categories: categories, Items: len(items)}
	for _, item := range items {
		if item.IsPublished {
			s.Published++
		}
		if item.CategoryID == "" {
			s.Uncategorized++
		}
		for _, m := range item.Media {
			if m.IsBlob() {
				s.BlobMedia++
			} else {
				s.External++
			}
		}
	}
	return s
}

func formatBytes(n int64) string {
	const unit = 1024
	if n <= 0 {
		return "-"
	}
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

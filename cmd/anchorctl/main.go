package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nev3rmi/citeanchor/internal/chunkstore"
	"github.com/nev3rmi/citeanchor/internal/citation"
	"github.com/nev3rmi/citeanchor/internal/pdftext"
	"github.com/nev3rmi/citeanchor/internal/pipeline"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "anchorctl",
		Short: "Citation anchoring toolkit",
		Long: `Anchorctl aligns cited passages against PDF text layers and prints
the highlight rectangles the citeanchor service would emit.

It works on local PDF files, or resolves chunk references through a
running chunk store.`,
		Version: version,
	}

	rootCmd.AddCommand(alignCmd())
	rootCmd.AddCommand(parseRefCmd())
	rootCmd.AddCommand(extractCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func alignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "align",
		Short: "Align a passage against a PDF and print highlight regions",
		Long: `Align a passage against a PDF's text layer.

The passage comes from --passage, or from a citation link via --ref. A
chunk-bearing ref can be resolved through a chunk store, which supplies
the full chunk text, its page numbers, and optionally the PDF itself.

Example:
  anchorctl align --pdf manual.pdf --passage "The vehicle is equipped with NFC."
  anchorctl align --ref "manual.pdf - Page 4 - Chunk 17 - [NFC pairing]" --chunkstore http://localhost:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pdfPath, _ := cmd.Flags().GetString("pdf")
			passageText, _ := cmd.Flags().GetString("passage")
			refText, _ := cmd.Flags().GetString("ref")
			page, _ := cmd.Flags().GetInt("page")
			useLines, _ := cmd.Flags().GetBool("lines")
			asJSON, _ := cmd.Flags().GetBool("json")
			endpoint, _ := cmd.Flags().GetString("chunkstore")
			apiKey, _ := cmd.Flags().GetString("chunkstore-key")

			if passageText == "" && refText == "" {
				return fmt.Errorf("either --passage or --ref is required")
			}

			sourceText := passageText
			var pages []int
			if page > 0 {
				pages = []int{page}
			}

			var pdfData []byte
			if refText != "" {
				ref := citation.ParseRef(refText)
				passageText = ref.SourceText
				sourceText = ref.SourceText
				if len(pages) == 0 && ref.HasPage() {
					pages = []int{ref.Page}
				}
				if ref.HasChunk() && endpoint != "" {
					client := chunkstore.NewClient(endpoint, apiKey, 10*time.Second, 60*time.Second)
					defer client.Close()

					chunk, err := client.FetchChunk(cmd.Context(), ref.ChunkID)
					if err != nil {
						return fmt.Errorf("fetch chunk %s: %w", ref.ChunkID, err)
					}
					if chunk.Text != "" {
						passageText = chunk.Text
					}
					if page == 0 && len(chunk.Pages) > 0 {
						pages = chunk.Pages
					}
					if pdfPath == "" && chunk.PDFURL != "" {
						pdfData, err = client.DownloadPDF(cmd.Context(), chunk.PDFURL)
						if err != nil {
							return fmt.Errorf("download pdf: %w", err)
						}
					}
				}
			}

			var src *pdftext.FileSource
			var err error
			switch {
			case pdfPath != "":
				src, err = pdftext.OpenFile(pdfPath)
			case pdfData != nil:
				src, err = pdftext.NewSource(pdfData)
			default:
				return fmt.Errorf("--pdf is required unless --ref resolves to a pdf_url through --chunkstore")
			}
			if err != nil {
				return fmt.Errorf("open pdf: %w", err)
			}
			defer src.Close()

			if len(pages) == 0 {
				for p := 1; p <= src.PageCount(); p++ {
					pages = append(pages, p)
				}
			}

			var res pipeline.AlignResult
			if useLines {
				res = pipeline.AlignLines(src, pages, passageText, sourceText)
			} else {
				res = pipeline.Align(src, pages, passageText, sourceText)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printAlignResult(res, pages)
			return nil
		},
	}

	cmd.Flags().StringP("pdf", "f", "", "PDF file path")
	cmd.Flags().StringP("passage", "p", "", "Passage text to align")
	cmd.Flags().StringP("ref", "r", "", "Citation link text to parse and align")
	cmd.Flags().Int("page", 0, "Restrict matching to one page")
	cmd.Flags().Bool("lines", false, "Match whole visual lines instead of word tokens")
	cmd.Flags().Bool("json", false, "Emit JSON")
	cmd.Flags().String("chunkstore", "", "Chunk store base URL for resolving chunk ids")
	cmd.Flags().String("chunkstore-key", "", "Chunk store API key")
	return cmd
}

func printAlignResult(res pipeline.AlignResult, pages []int) {
	for _, pe := range res.PageErrors {
		fmt.Printf("warning: %s\n", pe)
	}

	accepted := 0
	for _, r := range res.Results {
		if r.Accepted() {
			accepted++
		}
	}
	fmt.Printf("Matched %d/%d blocks across %d page(s)\n", accepted, len(res.Results), len(pages))
	for _, r := range res.Results {
		fmt.Printf("  block %d: %-11s score %.3f (%d tokens)\n",
			r.BlockIndex, r.Strategy, r.Score, len(r.TokenIndices))
	}

	if len(res.Regions) == 0 {
		fmt.Println("No highlight regions.")
		return
	}
	fmt.Println("\nHighlight regions:")
	for _, reg := range res.Regions {
		fmt.Printf("  page %d: %d rect(s), bounds x=%.1f y=%.1f w=%.1f h=%.1f\n",
			reg.PageNumber, len(reg.Rects),
			reg.BoundingRect.X, reg.BoundingRect.Y, reg.BoundingRect.Width, reg.BoundingRect.Height)
		for _, rc := range reg.Rects {
			fmt.Printf("    rect x=%.1f y=%.1f w=%.1f h=%.1f\n", rc.X, rc.Y, rc.Width, rc.Height)
		}
	}
}

func parseRefCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse-ref [link text]",
		Short: "Parse a citation link text into its components",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			ref := citation.ParseRef(args[0])
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(ref)
			}
			if ref.HasChunk() {
				fmt.Printf("filename:    %s\n", ref.Filename)
				fmt.Printf("page:        %d\n", ref.Page)
				fmt.Printf("chunk_id:    %s\n", ref.ChunkID)
			} else {
				fmt.Println("unstructured citation, no chunk reference")
			}
			fmt.Printf("source_text: %s\n", ref.SourceText)
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Emit JSON")
	return cmd
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Dump a page's word tokens or visual lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			pdfPath, _ := cmd.Flags().GetString("pdf")
			page, _ := cmd.Flags().GetInt("page")
			useLines, _ := cmd.Flags().GetBool("lines")
			asJSON, _ := cmd.Flags().GetBool("json")

			if pdfPath == "" {
				return fmt.Errorf("--pdf flag is required")
			}
			src, err := pdftext.OpenFile(pdfPath)
			if err != nil {
				return fmt.Errorf("open pdf: %w", err)
			}
			defer src.Close()

			if page < 1 || page > src.PageCount() {
				return fmt.Errorf("page %d out of range (document has %d)", page, src.PageCount())
			}
			_, runs, err := src.Page(page)
			if err != nil {
				return fmt.Errorf("extract page %d: %w", page, err)
			}

			if useLines {
				lines := pdftext.GroupLines(runs)
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(lines)
				}
				for i, ln := range lines {
					fmt.Printf("%3d  y=%-8.1f %s\n", i, ln.Y, ln.Text)
				}
				return nil
			}

			tokens := pdftext.Tokenize(runs)
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(tokens)
			}
			for i, tok := range tokens {
				fmt.Printf("%3d  (%7.1f, %7.1f) %s\n", i, tok.X, tok.Y, tok.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringP("pdf", "f", "", "PDF file path")
	cmd.Flags().Int("page", 1, "1-indexed page number")
	cmd.Flags().Bool("lines", false, "Group into visual lines")
	cmd.Flags().Bool("json", false, "Emit JSON")
	return cmd
}

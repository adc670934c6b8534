package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jo-hoe/cinememe/internal/editor"
)

// cropCommand runs the crop rasterizer on local files.
func cropCommand() *cobra.Command {
	var (
		region  editor.CropRegion
		format  string
		quality int
	)
	cmd := &cobra.Command{
		Use:   "crop <in> <out>",
		Short: "Crops an image to a region given in percent of its size",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = filepath.Ext(args[1])
			}
			f, err := editor.ParseFormat(strings.TrimPrefix(format, "."))
			if err != nil {
				return err
			}
			if !region.Valid() {
				return fmt.Errorf("invalid region %+v: need width and height of at least %g and edges within 0..100", region, editor.MinCropSize)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			out, err := editor.CropBlob(data, region, editor.EncodeOptions{Format: f, Quality: quality})
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], out, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", args[1], err)
			}
			cmd.Printf("wrote %s (%d bytes)\n", args[1], len(out))
			return nil
		},
	}
	cmd.Flags().Float64Var(&region.X, "x", 0, "left edge in percent")
	cmd.Flags().Float64Var(&region.Y, "y", 0, "top edge in percent")
	cmd.Flags().Float64Var(&region.Width, "width", editor.MaxPercent, "width in percent")
	cmd.Flags().Float64Var(&region.Height, "height", editor.MaxPercent, "height in percent")
	cmd.Flags().StringVar(&format, "format", "", "png or jpeg (defaults to the output file extension)")
	cmd.Flags().IntVar(&quality, "quality", editor.DefaultJPEGQuality, "jpeg quality")
	return cmd
}

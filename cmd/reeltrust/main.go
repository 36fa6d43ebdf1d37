// Command reeltrust is the CLI surface spec.md §6 calls "the consuming
// CLI": sign and verify subcommands, exit 0 on valid/success, 1 on
// invalid/error. Grounded on original_source/src/reeltrust/cli.py's sign
// and verify commands, reworked from Click onto spf13/cobra (the CLI
// framework the example pack's niemandssh-stash-reforged repo carries).
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aaronsteers/ReelTrust"
	"github.com/aaronsteers/ReelTrust/internal/fetch"
	"github.com/aaronsteers/ReelTrust/metadata"
	"github.com/aaronsteers/ReelTrust/verifier"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reeltrust",
		Short: "Content authenticity verification for video and audio media",
	}
	root.AddCommand(newSignCmd(), newVerifyCmd())
	return root
}

func newSignCmd() *cobra.Command {
	var (
		output  string
		user    string
		gps     string
		width   int
		regions string
	)

	cmd := &cobra.Command{
		Use:   "sign VIDEO_PATH",
		Short: "Create a signed verification package for a video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoPath := args[0]
			if !fetch.IsURL(videoPath) {
				if _, err := os.Stat(videoPath); err != nil {
					return fmt.Errorf("video path: %w", err)
				}
			}

			opts := metadata.Options{UserIdentity: user}
			if gps != "" {
				loc, err := parseGPS(gps)
				if err != nil {
					return err
				}
				opts.GPS = loc
			}

			var coreOpts []reeltrust.Option
			if regions != "" {
				fractions, err := parseFractions(regions)
				if err != nil {
					return err
				}
				coreOpts = append(coreOpts, reeltrust.WithRegions(fractions))
			}

			core, err := reeltrust.New(coreOpts...)
			if err != nil {
				return err
			}
			defer core.Close()

			packageDir := output
			if packageDir == "" {
				packageDir = filepath.Join(".data", "outputs", baseName(videoPath))
			}

			m, err := core.Sign(context.Background(), videoPath, packageDir, opts, width)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Success! Package created at: %s (package_id=%s)\n", packageDir, m.PackageID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory for the verification package (default .data/outputs/<video-name>)")
	cmd.Flags().StringVarP(&user, "user", "u", "", "User identity (username, email, etc.)")
	cmd.Flags().StringVarP(&gps, "gps", "g", "", "GPS coordinates as 'latitude,longitude'")
	cmd.Flags().IntVarP(&width, "width", "w", 240, "Width for compressed video digest")
	cmd.Flags().StringVar(&regions, "regions", "", "Comma-separated concentric-region size fractions to fingerprint, e.g. '0.75,0.50' (default: disabled)")

	return cmd
}

func newVerifyCmd() *cobra.Command {
	var (
		width        int
		threshold    float64
		auditDir     string
		checkRegions bool
	)

	cmd := &cobra.Command{
		Use:   "verify VIDEO_PATH PACKAGE_PATH",
		Short: "Verify a video against its verification package",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoPath, packagePath := args[0], args[1]
			fmt.Printf("Verifying video: %s\n", videoPath)
			fmt.Printf("Against package: %s\n", packagePath)
			fmt.Println("This may take a moment...")

			var coreOpts []reeltrust.Option
			if checkRegions {
				coreOpts = append(coreOpts, reeltrust.WithRegions(nil))
			}

			core, err := reeltrust.New(coreOpts...)
			if err != nil {
				return err
			}
			defer core.Close()

			result, err := core.Verify(context.Background(), videoPath, packagePath, verifier.Options{AuditOutputDir: auditDir}, width, threshold)
			if err != nil {
				return err
			}

			printResult(result)

			if !result.IsValid {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&width, "width", "w", 240, "Width for compressed video digest")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0.99, "Minimum SSIM threshold for validation")
	cmd.Flags().StringVar(&auditDir, "audit-dir", "", "Directory for audit clips when windows are flagged")
	cmd.Flags().BoolVar(&checkRegions, "regions", false, "Cross-check concentric-region fingerprints when the package carries them")

	return cmd
}

func printResult(result *verifier.Result) {
	if result.IsValid {
		fmt.Println("\n✓ VERIFICATION PASSED")
		fmt.Println("The video digest is authentic and matches the original video.")
	} else {
		fmt.Println("\n✗ VERIFICATION FAILED")
		fmt.Println("The video digest does not match or has been tampered with.")
	}

	fmt.Println("\nVerification Checks:")
	checks := map[string]bool{
		"package_structure":   result.Checks.PackageStructure,
		"manifest_integrity":  result.Checks.ManifestIntegrity,
		"artifact_integrity":  result.Checks.ArtifactIntegrity,
		"digest_hash_match":   result.Checks.DigestHashMatch,
		"ssim_ok":             result.Checks.SSIMOk,
		"frame_count_match":   result.Checks.FrameCountMatch,
		"fingerprint_dhash_ok": result.Checks.FingerprintDHashOk,
		"fingerprint_phash_ok": result.Checks.FingerprintPHashOk,
		"fingerprint_stats_ok": result.Checks.FingerprintStatsOk,
	}
	for name, passed := range checks {
		symbol := "✗"
		if passed {
			symbol = "✓"
		}
		fmt.Printf("  %s %s\n", symbol, strings.ReplaceAll(name, "_", " "))
	}
	if result.Checks.RegionsOk != nil {
		symbol := "✗"
		if *result.Checks.RegionsOk {
			symbol = "✓"
		}
		fmt.Printf("  %s regions ok\n", symbol)
	}

	if len(result.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
}

func parseFractions(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	fractions := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid region fraction %q: %w", p, err)
		}
		fractions = append(fractions, f)
	}
	return fractions, nil
}

func parseGPS(s string) (*metadata.GPSLocation, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid GPS coordinates format, use 'latitude,longitude'")
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("invalid GPS coordinates format, use 'latitude,longitude'")
	}
	return &metadata.GPSLocation{Latitude: lat, Longitude: lon}, nil
}

func baseName(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

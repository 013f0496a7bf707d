package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knpwrs/dc-download/internal/collections"
	"github.com/knpwrs/dc-download/internal/downloader"
	"github.com/knpwrs/dc-download/internal/images"
	"github.com/knpwrs/dc-download/internal/manifest"
	"github.com/spf13/cobra"
)

// TokenEnv is read when no --token flag is given.
const TokenEnv = "DIGITAL_COLLECTIONS_TOKEN"

type options struct {
	token        string
	size         string
	filename     string
	output       string
	manifest     string
	apiURL       string
	imageURL     string
	userAgent    string
	perPage      int
	skipExisting bool
	quiet        bool
	verbose      bool
}

// NewRootCmd builds the dc-download command.
func NewRootCmd(version string) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "dc-download [flags] <uuid-of-item>",
		Short: "Download images from NYPL Digital Collections",
		Long: `dc-download downloads every image of a NYPL Digital Collections item.

It looks up the item's captures through the Digital Collections API, picks the
requested image size for each capture and saves the images to a local directory,
named after the capture field of your choice.

An API access token is required, see http://api.repo.nypl.org/. Pass it with
--token or set $` + TokenEnv + ` (a .env file in the working directory is read too).

` + sizesHelp() + `
` + fieldsHelp() + `
Go to http://digitalcollections.nypl.org/ to browse NYPL's Digital Collections`,
		Example: `  # Download 1600px JPEGs named by capture UUID into the current directory
  dc-download 510d47e2-8e9d-a3d9-e040-e00a18064a99

  # Download full-size TIFFs named by page number
  dc-download -s T -f page -o ./scans 510d47e2-8e9d-a3d9-e040-e00a18064a99

  # Thumbnails with a YAML manifest of what was saved
  dc-download -s b -m thumbs.yaml 510d47e2-8e9d-a3d9-e040-e00a18064a99`,
		// The item UUID is positional; without this, cobra treats it as an
		// unknown subcommand once fang registers its own.
		Args: cobra.ArbitraryArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			setupLogging(opts.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.token, "token", "t", "", "Digital Collections API access token (or set $"+TokenEnv+")")
	flags.StringVarP(&opts.size, "size", "s", images.DefaultSize, "Size/type of images to download (see list above)")
	flags.StringVarP(&opts.filename, "filename", "f", images.DefaultField, "Field used as filename for downloaded files (see list above)")
	flags.StringVarP(&opts.output, "output", "o", ".", "Output directory")
	flags.StringVarP(&opts.manifest, "manifest", "m", "", "Write a manifest of downloaded files (.yaml, .yml or .parquet)")
	flags.StringVar(&opts.apiURL, "api-url", collections.DefaultBaseURL, "Digital Collections API base URL")
	flags.StringVar(&opts.imageURL, "image-url", images.DefaultEndpoint, "Image server endpoint")
	flags.StringVar(&opts.userAgent, "user-agent", "dc-download/"+version, "User-Agent header for HTTP requests")
	flags.IntVar(&opts.perPage, "per-page", collections.MaxPerPage, "Captures requested per API page")
	flags.BoolVar(&opts.skipExisting, "skip-existing", false, "Do not download images that already exist in the output directory")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print errors")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")

	return cmd
}

// run validates options and downloads the item.
func run(cmd *cobra.Command, opts *options, args []string) error {
	if opts.token == "" {
		opts.token = os.Getenv(TokenEnv)
	}

	if err := opts.validate(args); err != nil {
		return err
	}

	if len(args) == 0 {
		return cmd.Help()
	}
	uuid := args[0]

	size, _ := images.LookupSize(opts.size)
	field, _ := images.LookupField(opts.filename)

	client := collections.NewClient(collections.Options{
		BaseURL:   opts.apiURL,
		Token:     opts.token,
		PerPage:   opts.perPage,
		UserAgent: opts.userAgent,
	})

	dl := downloader.New(client, downloader.Config{
		OutputDir:     opts.output,
		Size:          size,
		Field:         field,
		ImageEndpoint: opts.imageURL,
		ManifestPath:  opts.manifest,
		SkipExisting:  opts.skipExisting,
		UserAgent:     opts.userAgent,
		Quiet:         opts.quiet,
		Out:           cmd.OutOrStdout(),
	})

	slog.Debug("Starting download",
		"uuid", uuid,
		"size", size.Code,
		"filename", field.Name,
		"output", opts.output)

	if _, err := dl.Download(cmd.Context(), uuid); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	return nil
}

// validate reports every problem with the options at once, before any
// network activity.
func (o *options) validate(args []string) error {
	var errs []error

	if len(args) > 1 {
		errs = append(errs, errors.New("please supply no more than one item"))
	}

	if _, ok := images.LookupSize(o.size); !ok {
		errs = append(errs, fmt.Errorf("image size invalid: %q", o.size))
	}

	if _, ok := images.LookupField(o.filename); !ok {
		errs = append(errs, fmt.Errorf("filename field invalid: %q", o.filename))
	}

	if o.token == "" {
		errs = append(errs, errors.New("Digital Collections API access token not set"))
	}

	if o.perPage < 1 || o.perPage > collections.MaxPerPage {
		errs = append(errs, fmt.Errorf("per-page must be between 1 and %d", collections.MaxPerPage))
	}

	if o.manifest != "" {
		if err := manifest.Supported(o.manifest); err != nil {
			errs = append(errs, err)
		}
	}

	for name, u := range map[string]string{"api-url": o.apiURL, "image-url": o.imageURL} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, fmt.Errorf("%s must start with http:// or https://", name))
		}
	}

	if o.quiet && o.verbose {
		errs = append(errs, errors.New("--quiet and --verbose cannot be used together"))
	}

	return errors.Join(errs...)
}

// setupLogging installs the default slog logger on stderr.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func sizesHelp() string {
	var b strings.Builder
	b.WriteString("Image sizes and types:\n")
	for _, s := range images.Sizes {
		mark := ""
		if s.PublicDomainOnly {
			mark = "*"
		}
		def := ""
		if s.Code == images.DefaultSize {
			def = " (default)"
		}
		fmt.Fprintf(&b, "  %s   %s%s%s\n", s.Code, s.Description, mark, def)
	}
	b.WriteString("      (sizes with * exist only for public domain assets)\n")
	return b.String()
}

func fieldsHelp() string {
	var b strings.Builder
	b.WriteString("Filename fields:\n")
	for _, f := range images.Fields {
		def := ""
		if f.Name == images.DefaultField {
			def = " (default)"
		}
		fmt.Fprintf(&b, "  %-6s %s%s\n", f.Name, f.Description, def)
	}
	return b.String()
}

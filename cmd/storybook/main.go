package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// options holds the command-line overrides applied on top of the environment.
type options struct {
	port          int
	analysisModel string
	imageModel    string
	storeBackend  string
	storeDir      string
	logLevel      string
	title         string
	validateKey   bool
	metrics       bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "storybook",
		Short: "Illustrate children's storybooks with AI art styles",
		Long: `Storybook Illustrator runs a local studio for writing a picture book.
Create art-style presets from reference images, describe recurring
characters, write pages and generate a matching illustration for each.

Examples:
  storybook serve
  storybook serve --port 9090 --image-model gemini-2.5-flash-image
  storybook presets list
  storybook presets add "Watercolor" ./reference.jpg
  storybook presets add "Crayon" --pick`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.analysisModel, "analysis-model", "", "Gemini model used for style analysis")
	pf.StringVar(&opts.imageModel, "image-model", "", "Model used to render illustrations")
	pf.StringVar(&opts.storeBackend, "store", "", "Preset storage backend (file, sqlite, s3, dynamodb, memory)")
	pf.StringVar(&opts.storeDir, "store-dir", "", "Directory for the file backend")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(opts), newPresetsCmd(opts))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/codeyoulateralligator/goodreader/internal/runcmd"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goodreader",
		Short: "Find your Goodreads to-read shelf in Estonian libraries",
		Long: `Goodreader looks up every title of a Goodreads "to-read" shelf in the ESTER
union catalogue, lists which library branches have a copy on the shelf right
now, finds a cover for each book and draws the result on a map.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(runcmd.NewRunCmd())
	cmd.AddCommand(runcmd.NewReportCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

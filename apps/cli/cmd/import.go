package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitupload/packages/core/config"
	"github.com/abdul-hamid-achik/hitupload/packages/import/curl"
	"github.com/abdul-hamid-achik/hitupload/packages/import/openapi"
)

var (
	importOutputFlag    string
	importForceFlag     bool
	importBaseURLFlag   string
	importOperationFlag string
	importListFlag      bool
)

var importCmd = &cobra.Command{
	Use:   "import <format> <source>",
	Short: "Create an upload config from a curl command or an OpenAPI spec",
	Long: `Convert an existing upload description into a hitupload config.

Supported formats:
  curl    - a curl command using -F/--form parts
  openapi - an OpenAPI 3 operation with a multipart/form-data body

The config is printed as YAML unless -o names a file; a .json file gets JSON.`,
}

var importCurlCmd = &cobra.Command{
	Use:   "curl <command|file|->",
	Short: "Import a curl -F upload",
	Long: `Convert a curl multipart upload into a config. The argument is the
command itself, a file holding it (backslash continuations allowed) or "-"
for stdin.

Examples:
  hitupload import curl 'curl -F comment=Larry -F files=@a.txt http://localhost:8080/upload'
  hitupload import curl upload.sh -o .hitupload.yaml
  pbpaste | hitupload import curl -`,
	Args: cobra.ExactArgs(1),
	RunE: importCurlCommand,
}

var importOpenAPICmd = &cobra.Command{
	Use:   "openapi <spec-file-or-url>",
	Short: "Import a multipart operation from an OpenAPI spec",
	Long: `Build a config for one OpenAPI operation whose request body is
multipart/form-data. The first binary property becomes the file field and the
other properties become text fields filled from their examples.

Examples:
  hitupload import openapi spec.yaml --list
  hitupload import openapi spec.yaml --operation uploadPhoto
  hitupload import openapi https://api.example.com/openapi.json --operation "POST /files"
  hitupload import openapi spec.yaml --base-url http://localhost:8080 -o .hitupload.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: importOpenAPICommand,
}

func init() {
	for _, c := range []*cobra.Command{importCurlCmd, importOpenAPICmd} {
		c.Flags().StringVarP(&importOutputFlag, "output", "o", "", "Output file path (default: stdout)")
		c.Flags().BoolVar(&importForceFlag, "force", false, "Overwrite an existing output file")
	}
	importOpenAPICmd.Flags().StringVar(&importBaseURLFlag, "base-url", "", "Override base URL from spec")
	importOpenAPICmd.Flags().StringVar(&importOperationFlag, "operation", "", "operationId or \"METHOD /path\" to import")
	importOpenAPICmd.Flags().BoolVar(&importListFlag, "list", false, "List the upload operations and exit")

	importCmd.AddCommand(importCurlCmd)
	importCmd.AddCommand(importOpenAPICmd)
}

func importCurlCommand(cmd *cobra.Command, args []string) error {
	command, err := readCurlSource(cmd, args[0])
	if err != nil {
		return err
	}

	parsed, err := curl.Parse(command)
	if err != nil {
		return fmt.Errorf("failed to import curl command: %w", err)
	}
	for _, w := range parsed.Warnings {
		log.Warn().Msg(w)
	}
	return writeImported(cmd, parsed.Config())
}

func readCurlSource(cmd *cobra.Command, source string) (string, error) {
	var r io.Reader
	switch {
	case source == "-":
		r = cmd.InOrStdin()
	case strings.HasPrefix(strings.TrimSpace(source), "curl"):
		return source, nil
	default:
		f, err := os.Open(source)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	return curl.Read(r)
}

func importOpenAPICommand(cmd *cobra.Command, args []string) error {
	converter := openapi.NewConverter(
		openapi.WithBaseURL(importBaseURLFlag),
		openapi.WithOperation(importOperationFlag),
	)

	doc, err := openapi.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := doc.Validate(cmd.Context()); err != nil {
		log.Warn().Err(err).Msg("OpenAPI spec validation")
	}

	if importListFlag {
		out := cmd.OutOrStdout()
		for _, u := range converter.Uploads(doc) {
			fmt.Fprintf(out, "%-24s %s  (file field %q)\n", u.OperationID, u.Key(), u.FileField)
		}
		return nil
	}

	cfg, upload, err := converter.Convert(doc)
	if err != nil {
		return err
	}
	for _, w := range upload.Warnings {
		log.Warn().Str("operation", upload.Key()).Msg(w)
	}
	return writeImported(cmd, cfg)
}

// writeImported prints cfg as YAML or saves it to the --output file.
func writeImported(cmd *cobra.Command, cfg *config.Config) error {
	if importOutputFlag == "" {
		data, err := cfg.Marshal(".yaml")
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	if !importForceFlag {
		if _, err := os.Stat(importOutputFlag); err == nil {
			return fmt.Errorf("file already exists: %s (use --force to overwrite)", importOutputFlag)
		}
	}
	if err := cfg.SaveConfig(importOutputFlag); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", importOutputFlag)
	return nil
}

package cli

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
	"github.com/spf13/cobra"

	"github.com/roach88/proctape/internal/manifest"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError is one problem found while validating a recording.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <recording-dir>",
		Short: "Validate a recording directory",
		Long: `Validate a recording directory: the manifest must satisfy the schema,
parse into entries, and every recorded invocation's stdio blobs must exist
on disk.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := opts.loadOptions()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
		msg := fmt.Sprintf("recording directory not found: %s", dir)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	path := filepath.Join(dir, cfg.ManifestName)
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		msg := fmt.Sprintf("manifest not found: %s", path)
		_ = formatter.Error(ErrCodeNoManifest, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	formatter.VerboseLog("Validating %s (%d bytes)", path, len(data))
	validationErrors := ValidateRecording(dir, data)
	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ Recording valid")
	return nil
}

// ValidateRecording checks raw manifest data for a recording directory:
// schema conformance first, then entry decoding, then blob presence. Later
// stages only run when earlier ones pass, so one root cause is reported
// once.
func ValidateRecording(dir string, data []byte) []ValidationError {
	if errs := validateSchema(data); len(errs) > 0 {
		return errs
	}

	man, err := manifest.Deserialize(data)
	if err != nil {
		return []ValidationError{{Code: ErrCodeBadManifest, Message: err.Error()}}
	}

	var errs []ValidationError
	for _, entry := range man.Entries() {
		run, ok := entry.(*manifest.RunEntry)
		if !ok {
			continue
		}
		for _, suffix := range []string{".stdout", ".stderr"} {
			name := run.Basename + suffix
			if _, statErr := os.Stat(filepath.Join(dir, name)); statErr != nil {
				errs = append(errs, ValidationError{
					Code:    ErrCodeMissingBlob,
					Message: fmt.Sprintf("missing stdio blob %s", name),
				})
			}
		}
	}
	return errs
}

// validateSchema unifies the manifest JSON against the embedded CUE schema.
func validateSchema(data []byte) []ValidationError {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return []ValidationError{{Code: ErrCodeGeneric, Message: fmt.Sprintf("compiling schema: %v", err)}}
	}

	expr, err := cuejson.Extract("manifest.json", data)
	if err != nil {
		return []ValidationError{{Code: ErrCodeBadManifest, Message: fmt.Sprintf("manifest is not valid JSON: %v", err)}}
	}
	value := ctx.BuildExpr(expr)
	if err := value.Err(); err != nil {
		return []ValidationError{{Code: ErrCodeBadManifest, Message: fmt.Sprintf("building manifest value: %v", err)}}
	}

	unified := schema.LookupPath(cue.ParsePath("#Manifest")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		var errs []ValidationError
		for _, e := range cueerrors.Errors(err) {
			errs = append(errs, ValidationError{
				Code:    ErrCodeSchemaInvalid,
				Message: e.Error(),
			})
		}
		return errs
	}
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := writeIndentedJSON(formatter, response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", err.Code, err.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

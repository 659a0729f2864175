package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mathcanvas/api/internal/calc"
	"mathcanvas/api/internal/llm"
	"mathcanvas/api/internal/util"
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Run the pipeline once on an image file",
	Example: `
# Solve a drawing
calc-server solve --image canvas.png

# With known variables, on a specific engine
calc-server solve --image canvas.png --var x=4 --var name=alice --llm openai
`,
	RunE: runSolve,
}

func init() {
	solveCmd.Flags().String("image", "", "path to the image (png or jpeg)")
	solveCmd.Flags().StringArray("var", nil, "variable as name=value, repeatable")
	solveCmd.Flags().String("llm", "", "engine name (gemini|openai), default from config")
	_ = solveCmd.MarkFlagRequired("image")
}

func runSolve(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	path, _ := cmd.Flags().GetString("image")
	rawVars, _ := cmd.Flags().GetStringArray("var")
	llmName, _ := cmd.Flags().GetString("llm")

	vars, err := parseVars(rawVars)
	if err != nil {
		return err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if err := cfg.Validate(); err != nil {
		return err
	}
	engs, closeEngines, err := llm.FromConfig(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeEngines()
	eng, err := engs.GetEngine(llmName)
	if err != nil {
		return err
	}

	img := util.MakeDataURL(util.PickMIME("", "", b), base64.StdEncoding.EncodeToString(b))
	resp, err := calc.New(eng, log, nil).Run(ctx, calc.Request{Image: img, Variables: vars})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(struct {
		Records  calc.Batch `json:"data"`
		Degraded bool       `json:"degraded,omitempty"`
	}{resp.Records, resp.Degraded})
}

// parseVars turns name=value pairs into variables.
func parseVars(pairs []string) (calc.Variables, error) {
	vars := calc.Variables{}
	for _, p := range pairs {
		name, val, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("bad --var %q: want name=value", p)
		}
		vars[name] = calc.ScalarFromText(strings.TrimSpace(val))
	}
	return vars, nil
}

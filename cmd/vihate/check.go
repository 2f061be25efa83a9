package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/vihate/internal/api"
)

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Classify one text (from the arguments or stdin)",
		ArgsUsage: "[text...]",
		Flags:     append(modelFlags(), runtimeFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelConfig(cmd, fileConfig)

			text := strings.Join(cmd.Args().Slice(), " ")
			if text == "" && !stdinIsTTY() {
				raw, err := io.ReadAll(io.LimitReader(os.Stdin, 64<<10))
				if err != nil {
					return err
				}
				text = string(raw)
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("text cannot be empty or whitespace only")
			}
			if utf8.RuneCountInString(text) > api.MaxTextLength {
				return fmt.Errorf("text too long: maximum %d characters allowed", api.MaxTextLength)
			}

			svc, cleanup, err := buildService(ctx)
			defer cleanup()
			if err != nil {
				return err
			}
			label, err := svc.Check(ctx, text)
			if err != nil {
				return err
			}
			fmt.Println(label)
			return nil
		},
	}
}

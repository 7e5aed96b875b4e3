package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"sightspeak/internal/assistant"
)

// errNotAnswered is returned when a flow ends with a busy, overflow, timeout
// or error notice instead of an answer.
var errNotAnswered = errors.New("no answer")

type flowFlags struct {
	mute      bool
	translate bool
	image     string
}

func (f *flowFlags) bindMute(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.mute, "mute", false, "Print the answer without speaking it")
}

func (f *flowFlags) bindImage(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.image, "image", "", "Still image to use instead of capture_path (jpeg|png|webp)")
}

func newAskCmd(c *cli) *cobra.Command {
	var f flowFlags
	cmd := &cobra.Command{
		Use:     "ask <prompt...>",
		Short:   "Ask a question; the model decides whether to look through the camera",
		Example: "  sightspeak ask what is in front of me\n  sightspeak ask --translate --locale de good morning",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(c.cfg, c.log, appOptions{Mute: f.mute})
			if err != nil {
				return err
			}
			defer a.Close()
			prompt := strings.Join(args, " ")
			var res assistant.Result
			if f.translate {
				res, err = a.asst.Translate(cmd.Context(), prompt)
			} else {
				res, err = a.asst.HandleText(cmd.Context(), prompt)
			}
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}
	f.bindMute(cmd)
	cmd.Flags().BoolVar(&f.translate, "translate", false, "Translate the text into the response locale")
	return cmd
}

func newDescribeCmd(c *cli) *cobra.Command {
	var f flowFlags
	cmd := &cobra.Command{
		Use:     "describe [prompt...]",
		Short:   "Describe the current camera frame",
		Example: "  sightspeak describe\n  sightspeak describe --image desk.jpg where is my phone",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			if f.image != "" {
				cfg.CapturePath = f.image
			}
			a, err := newApp(cfg, c.log, appOptions{Mute: f.mute})
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.asst.Describe(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}
	f.bindMute(cmd)
	f.bindImage(cmd)
	return cmd
}

func newReadCmd(c *cli) *cobra.Command {
	var f flowFlags
	cmd := &cobra.Command{
		Use:     "read",
		Short:   "Read text from the camera frame and translate it",
		Example: "  sightspeak read --image sign.png --locale ja",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			if f.image != "" {
				cfg.CapturePath = f.image
			}
			a, err := newApp(cfg, c.log, appOptions{Mute: f.mute})
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.asst.ReadAndTranslate(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}
	f.bindMute(cmd)
	f.bindImage(cmd)
	return cmd
}

func newListenCmd(c *cli) *cobra.Command {
	var f flowFlags
	cmd := &cobra.Command{
		Use:     "listen",
		Short:   "Listen for one voice command and answer it",
		Example: "  sightspeak listen\n  sightspeak listen --translate",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(c.cfg, c.log, appOptions{Mute: f.mute, TranslateMode: f.translate})
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.asst.HandleVoice(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}
	f.bindMute(cmd)
	cmd.Flags().BoolVar(&f.translate, "translate", false, "Translate the utterance instead of answering it")
	return cmd
}

// printResult writes the answer, or turns a final notice into an error.
func printResult(w io.Writer, res assistant.Result) error {
	if res.OK() {
		_, err := fmt.Fprintln(w, res.Answer)
		return err
	}
	notice := strings.TrimSpace(res.Final.Text)
	if res.Final.Err != nil {
		return fmt.Errorf("%w (%s): %s: %w", errNotAnswered, res.Final.Kind, notice, res.Final.Err)
	}
	return fmt.Errorf("%w (%s): %s", errNotAnswered, res.Final.Kind, notice)
}

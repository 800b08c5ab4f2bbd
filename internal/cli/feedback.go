// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat/internal/telemetry"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <message-id> <up|down>",
	Short: "Rate an answer",
	Long: `Tell the assistant whether an answer helped. The message id is printed
under every answer by ask, repl and show.

Ratings: up, yes, +, true (helpful) or down, no, -, false (not helpful).`,
	Args: cobra.ExactArgs(2),
	RunE: runFeedback,
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
}

// parseRating maps the accepted spellings to helpful (true) or not.
func parseRating(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "yes", "y", "+", "true", "helpful":
		return true, nil
	case "down", "no", "n", "-", "false", "unhelpful":
		return false, nil
	default:
		return false, fmt.Errorf("unknown rating %q (want up or down)", s)
	}
}

func runFeedback(cmd *cobra.Command, args []string) error {
	messageID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid message id %q", args[0])
	}
	positive, err := parseRating(args[1])
	if err != nil {
		return err
	}

	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	err = a.client.SubmitFeedback(cmd.Context(), messageID, positive)
	a.metrics.FeedbackSubmitted(positive, telemetry.OutcomeOf(err))
	if err != nil {
		err = fmt.Errorf("submit feedback: %w", err)
	}

	if jsonOutput {
		return writeJSON(cmd, "feedback", map[string]interface{}{
			"message_id": messageID,
			"helpful":    positive,
		}, err)
	}
	if err != nil {
		return err
	}

	rating := "helpful"
	if !positive {
		rating = "not helpful"
	}
	cmd.Printf("Recorded %s feedback for message %d\n", rating, messageID)
	return nil
}

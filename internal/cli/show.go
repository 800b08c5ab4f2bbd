// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat/internal/api"
	"github.com/jeranaias/docchat/internal/model"
)

var (
	showID  string
	showRaw bool
)

var showCmd = &cobra.Command{
	Use:   "show [domain]",
	Short: "Print the persisted conversation for a domain",
	Long: `Print the conversation the domain would resume, with message times,
sources and ratings. The persisted id is left untouched, even if the
conversation can no longer be loaded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVar(&showID, "id", "", "show this conversation id instead of the persisted one")
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "print markdown source instead of rendering it")
	rootCmd.AddCommand(showCmd)
}

// conversationJSON is the --json form of a stored conversation.
type conversationJSON struct {
	Domain         string              `json:"domain"`
	ConversationID string              `json:"conversation_id"`
	Messages       []api.StoredMessage `json:"messages"`
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	domain := a.domain()
	if len(args) == 1 {
		domain = args[0]
	}

	id := showID
	if id == "" {
		stored, ok, err := a.ids.Get(ctx, domain)
		if err != nil {
			return fmt.Errorf("read conversation id: %w", err)
		}
		if !ok {
			if jsonOutput {
				return writeJSON(cmd, "show", conversationJSON{Domain: domain, Messages: []api.StoredMessage{}}, nil)
			}
			cmd.Printf("No conversation for domain %q\n", domain)
			return nil
		}
		id = stored
	}

	conv, err := a.client.GetConversation(ctx, id)
	if err != nil {
		err = fmt.Errorf("load conversation %s: %w", id, err)
		if jsonOutput {
			return writeJSON(cmd, "show", conversationJSON{Domain: domain, ConversationID: id}, err)
		}
		return err
	}

	if jsonOutput {
		msgs := conv.Messages
		if msgs == nil {
			msgs = []api.StoredMessage{}
		}
		return writeJSON(cmd, "show", conversationJSON{Domain: domain, ConversationID: id, Messages: msgs}, nil)
	}

	cmd.Println(labelStyle.Render(fmt.Sprintf("Conversation %s", id)) + dimStyle.Render(fmt.Sprintf("  %s, %d %s", domain, len(conv.Messages), plural(len(conv.Messages), "message", "messages"))))
	cmd.Println()

	p := newTranscriptPrinter(cmd.OutOrStdout(), a.cfg.UI.WordWrap, showRaw)
	for _, stored := range conv.Messages {
		p.message(storedToMessage(stored))
	}
	return nil
}

// storedToMessage converts a stored message for printing. Stored content is
// markdown.
func storedToMessage(m api.StoredMessage) *model.Message {
	role := model.RoleAssistant
	if m.Role == string(model.RoleUser) {
		role = model.RoleUser
	}
	return &model.Message{
		ID:             m.ID.String(),
		MessageID:      m.ID.Int64(),
		Role:           role,
		CreatedAt:      m.Timestamp(),
		Content:        m.Content,
		Markdown:       m.Content,
		Feedback:       m.Feedback,
		SupportingDocs: m.SupportingDocs,
	}
}

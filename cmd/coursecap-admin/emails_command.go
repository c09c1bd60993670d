package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/coursecap-api/internal/dto"
	"github.com/noah-isme/coursecap-api/internal/models"
)

func newEmailsCommand(ctx *commandContext) *cobra.Command {
	emailsCmd := &cobra.Command{
		Use:   "emails",
		Short: "Queue and inspect outbound email",
	}

	emailsCmd.AddCommand(newEmailsQueueCommand(ctx))
	emailsCmd.AddCommand(newEmailsQueuedCommand(ctx))

	return emailsCmd
}

func newEmailsQueueCommand(ctx *commandContext) *cobra.Command {
	var (
		termID   int
		template string
		sections string
	)
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Queue a templated email for a batch of sections",
		RunE: func(cmd *cobra.Command, args []string) error {
			sectionIDs, err := parseSectionIDs(sections)
			if err != nil {
				return err
			}
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if termID == 0 {
				termID = app.Config.Term.CurrentTermID
			}
			res, err := app.Services.Queue.QueueBatch(cmd.Context(), dto.QueueEmailsRequest{
				TermID:       termID,
				SectionIDs:   sectionIDs,
				TemplateType: models.TemplateType(template),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	cmd.Flags().IntVar(&termID, "term", 0, "Term id (defaults to the current term)")
	cmd.Flags().StringVar(&template, "template", "", "Email template type, e.g. invitation")
	cmd.Flags().StringVar(&sections, "sections", "", "Comma separated section ids")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("sections")
	return cmd
}

func newEmailsQueuedCommand(ctx *commandContext) *cobra.Command {
	var termID int
	cmd := &cobra.Command{
		Use:   "queued",
		Short: "List emails waiting to be sent",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if termID == 0 {
				termID = app.Config.Term.CurrentTermID
			}
			queued, err := app.Services.Queue.ListQueued(cmd.Context(), termID)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(queued))
			for _, q := range queued {
				rows = append(rows, []string{
					strconv.Itoa(q.ID),
					string(q.TemplateType),
					strconv.Itoa(q.SectionID),
					q.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Template", "Section", "Queued at"}, rows, 0, 2))
			return nil
		},
	}
	cmd.Flags().IntVar(&termID, "term", 0, "Term id (defaults to the current term)")
	return cmd
}

func parseSectionIDs(raw string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid section id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one section id is required")
	}
	return ids, nil
}

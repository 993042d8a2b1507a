package cmd

import (
	"context"
	"strings"

	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
	"github.com/abdul-hamid-achik/hitupload/packages/notify"
)

// notifier builds the notification manager for f, or nil when --notify is
// not set.
func (f *requestFlags) notifier() (*notify.Manager, error) {
	if len(f.notify) == 0 {
		return nil, nil
	}

	notifyOn, err := notify.ParseNotifyOn(f.notifyOn)
	if err != nil {
		return nil, &uerrors.UsageError{Message: err.Error()}
	}

	manager := notify.NewManager(notifyOn)
	for _, service := range f.notify {
		switch strings.ToLower(strings.TrimSpace(service)) {
		case "slack":
			if f.slackWebhook == "" {
				return nil, &uerrors.UsageError{Message: "--slack-webhook is required when using --notify slack"}
			}
			var opts []notify.SlackOption
			if f.slackChannel != "" {
				opts = append(opts, notify.WithSlackChannel(f.slackChannel))
			}
			manager.AddNotifier(notify.NewSlackNotifier(f.slackWebhook, opts...))
		case "teams":
			if f.teamsWebhook == "" {
				return nil, &uerrors.UsageError{Message: "--teams-webhook is required when using --notify teams"}
			}
			manager.AddNotifier(notify.NewTeamsNotifier(f.teamsWebhook))
		case "":
		default:
			return nil, &uerrors.UsageError{Message: "unknown notification service " + service + " (use slack or teams)"}
		}
	}
	return manager, nil
}

// sendNotification delivers report and only warns when delivery fails.
func sendNotification(ctx context.Context, m *notify.Manager, report *notify.Report) {
	if err := m.Notify(context.WithoutCancel(ctx), report); err != nil {
		log.Warn().Err(err).Msg("failed to send notification")
	}
}

package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/router-for-me/StationPortal/internal/notify"
	"github.com/router-for-me/StationPortal/internal/realtime"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// forceLogoutTTL keeps the sign-out notice up a little longer than ordinary toasts.
const forceLogoutTTL = 5 * time.Second

func newListenCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Stay connected for server notifications until signed out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sess, errAuth := opts.authorize(ctx)
			if errAuth != nil {
				return errAuth
			}
			api := sess.Client()

			queue := notify.NewQueue(notify.DefaultCapacity, notify.DefaultTTL)
			defer queue.Close()
			updates, unsubscribe := queue.Subscribe()
			defer unsubscribe()
			printed := make(chan struct{})
			go func() {
				defer close(printed)
				seen := map[uint64]bool{}
				for entries := range updates {
					for _, e := range entries {
						if seen[e.ID] {
							continue
						}
						seen[e.ID] = true
						fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s %s\n", e.CreatedAt.Local().Format("15:04:05"), e.Kind, e.Message)
					}
				}
			}()

			listener := &realtime.Listener{
				URL:   api.NotificationsURL(),
				Token: api.Token,
				OnForceLogout: func(message string) {
					queue.ShowFor(notify.KindWarning, message, forceLogoutTTL)
					if errExpire := sess.Expire(); errExpire != nil {
						log.WithError(errExpire).Warn("clear local session failed")
					}
				},
				OnMessage: func(msg realtime.Message) {
					queue.Show(notify.KindInfo, msg.Message)
				},
			}
			queue.Show(notify.KindSuccess, "listening as "+sess.CurrentUser().Username)
			errRun := listener.Run(ctx)

			unsubscribe()
			<-printed
			if errors.Is(errRun, realtime.ErrForcedLogout) {
				return errors.New("signed out by the server")
			}
			return errRun
		},
	}
}

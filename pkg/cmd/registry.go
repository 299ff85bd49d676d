// Package cmd provides common initialization functions for the tideflow
// binaries.
package cmd

import (
	"log/slog"

	"github.com/tideflow-io/tideflow/pkg/connectors/approval"
	"github.com/tideflow-io/tideflow/pkg/connectors/feedpoll"
	"github.com/tideflow-io/tideflow/pkg/connectors/httprequest"
	"github.com/tideflow-io/tideflow/pkg/connectors/logmsg"
	"github.com/tideflow-io/tideflow/pkg/connectors/pathselect"
	"github.com/tideflow-io/tideflow/pkg/connectors/slack"
	"github.com/tideflow-io/tideflow/pkg/registry"
)

// NewRegistry creates a registry with all native connectors registered.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterAction(httprequest.NewFactory())
	reg.RegisterAction(logmsg.NewFactory())
	reg.RegisterAction(approval.NewFactory())
	reg.RegisterAction(pathselect.NewFactory())

	reg.RegisterPollTrigger(feedpoll.NewFactory())
	reg.RegisterWebhookTrigger(slack.NewFactory())

	return reg
}

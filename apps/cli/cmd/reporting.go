package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apicase/packages/metrics"
	"github.com/abdul-hamid-achik/apicase/packages/notify"
)

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// newNotifier builds the notification manager from the --notify flags, nil
// when no service is requested.
func newNotifier() (*notify.Manager, error) {
	services := splitList(notifyFlag)
	if len(services) == 0 {
		return nil, nil
	}

	notifyOn, err := notify.ParseNotifyOn(notifyOnFlag)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}

	var notifiers []notify.Notifier
	for _, service := range services {
		switch strings.ToLower(service) {
		case "slack":
			if slackWebhookFlag == "" {
				return nil, exitf(ExitUsageError, "--slack-webhook is required when using --notify slack")
			}
			var opts []notify.SlackOption
			if slackChannelFlag != "" {
				opts = append(opts, notify.WithSlackChannel(slackChannelFlag))
			}
			notifiers = append(notifiers, notify.NewSlackNotifier(slackWebhookFlag, opts...))
		case "teams":
			if teamsWebhookFlag == "" {
				return nil, exitf(ExitUsageError, "--teams-webhook is required when using --notify teams")
			}
			notifiers = append(notifiers, notify.NewTeamsNotifier(teamsWebhookFlag))
		default:
			return nil, exitf(ExitUsageError, "unknown notification service %q (use slack or teams)", service)
		}
	}

	return notify.NewManager(notifyOn, notifiers...), nil
}

// newMetricsCollector builds the exporters named by --metrics, nil when none.
// Prometheus and json print to the command's output unless a port or file
// is given.
func newMetricsCollector(cmd *cobra.Command) (*metrics.Collector, error) {
	formats := splitList(metricsFlag)
	if len(formats) == 0 {
		return nil, nil
	}

	var exporters []metrics.Exporter
	for _, format := range formats {
		switch strings.ToLower(format) {
		case "prometheus":
			var opt metrics.PrometheusOption
			if metricsPortFlag > 0 {
				opt = metrics.WithPrometheusHTTP(fmt.Sprintf(":%d", metricsPortFlag))
			} else {
				opt = metrics.WithPrometheusWriter(cmd.OutOrStdout())
			}
			p, err := metrics.NewPrometheusExporter(opt)
			if err != nil {
				return nil, withExitCode(ExitConfigError, err)
			}
			if addr := p.Addr(); addr != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Prometheus metrics available at http://%s/metrics\n", addr)
			}
			exporters = append(exporters, p)

		case "datadog":
			if datadogAPIKeyFlag == "" {
				return nil, exitf(ExitUsageError, "--datadog-api-key (or DD_API_KEY) is required when using --metrics datadog")
			}
			opts := []metrics.DataDogOption{
				metrics.WithDataDogAPIKey(datadogAPIKeyFlag),
				metrics.WithDataDogSite(datadogSiteFlag),
			}
			if tags := splitList(datadogTagsFlag); len(tags) > 0 {
				opts = append(opts, metrics.WithDataDogTags(tags))
			}
			exporters = append(exporters, metrics.NewDataDogExporter(opts...))

		case "json":
			opts := []metrics.JSONOption{metrics.WithJSONVersion(version)}
			if metricsFileFlag != "" {
				opts = append(opts, metrics.WithJSONFile(metricsFileFlag))
			} else {
				opts = append(opts, metrics.WithJSONWriter(cmd.OutOrStdout()))
			}
			exporters = append(exporters, metrics.NewJSONExporter(opts...))

		default:
			return nil, exitf(ExitUsageError, "unknown metrics format %q (use prometheus, datadog or json)", format)
		}
	}

	return metrics.NewCollector(exporters...), nil
}

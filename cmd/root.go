// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/decantio/decant/cmd/util"
	"github.com/decantio/decant/pkg/snapshot/tempfile"
)

const (
	logFormatFlag = "log-format"
	logFormatConf = "log.format"
	logLevelFlag  = "log-level"
	logLevelConf  = "log.level"

	modeFlag = "mode"
	modeConf = "mode"

	snapshotDirFlag = "snapshot-dir"
	snapshotDirConf = "snapshot.dir"

	traceEnabledFlag       = "trace-enabled"
	traceEnabledConf       = "trace.enabled"
	traceEndpointFlag      = "trace-otlp-endpoint"
	traceEndpointConf      = "trace.otlp.endpoint"
	traceTLSEnabledFlag    = "trace-otlp-tls-enabled"
	traceTLSEnabledConf    = "trace.otlp.tls.enabled"
	traceServiceNameFlag   = "trace-service-name"
	traceServiceNameConf   = "trace.serviceName"
	traceSampleRatioFlag   = "trace-sample-ratio"
	traceSampleRatioConf   = "trace.sampleRatio"
	traceSlowThresholdFlag = "trace-slow-threshold"
	traceSlowThresholdConf = "trace.slowThreshold"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with DECANT, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("DECANT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/decant", "$HOME/.decant", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	err := viper.ReadInConfig()
	if err == nil {
		for flag, conf := range map[string]string{
			logFormatFlag:          logFormatConf,
			logLevelFlag:           logLevelConf,
			modeFlag:               modeConf,
			snapshotDirFlag:        snapshotDirConf,
			traceEnabledFlag:       traceEnabledConf,
			traceEndpointFlag:      traceEndpointConf,
			traceTLSEnabledFlag:    traceTLSEnabledConf,
			traceServiceNameFlag:   traceServiceNameConf,
			traceSampleRatioFlag:   traceSampleRatioConf,
			traceSlowThresholdFlag: traceSlowThresholdConf,
		} {
			if viper.IsSet(conf) {
				viper.SetDefault(flag, viper.Get(conf))
			}
		}
	}

	cmd := &cobra.Command{
		Use:   "decant",
		Short: "An interactive materialization engine for lazily-built data pipelines",
		Long: `An interactive materialization engine for lazily-built data pipelines.

Decant evaluates the minimal upstream subgraph of a pipeline node and
materializes it into an in-process or transient-file snapshot, so exploratory
reads never re-derive a pipeline's whole history or round-trip through
permanent storage.`,
	}

	flags := cmd.PersistentFlags()

	flags.String(logFormatFlag, "text", "the log format to output logs in, one of ['text', 'json']")
	util.MustBindPFlag(logFormatFlag, flags.Lookup(logFormatFlag))

	flags.String(logLevelFlag, "info", "the log level, one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']")
	util.MustBindPFlag(logLevelFlag, flags.Lookup(logLevelFlag))

	flags.String(modeFlag, "local", "the runtime mode deciding the snapshot backend, one of ['local', 'distributed']")
	util.MustBindPFlag(modeFlag, flags.Lookup(modeFlag))

	flags.String(snapshotDirFlag, tempfile.DefaultDir(), "the directory transient snapshot files are written into")
	util.MustBindPFlag(snapshotDirFlag, flags.Lookup(snapshotDirFlag))

	flags.Bool(traceEnabledFlag, false, "enable tracing and export traces over OTLP")
	util.MustBindPFlag(traceEnabledFlag, flags.Lookup(traceEnabledFlag))

	flags.String(traceEndpointFlag, "0.0.0.0:4317", "the grpc endpoint of the trace collector")
	util.MustBindPFlag(traceEndpointFlag, flags.Lookup(traceEndpointFlag))

	flags.Bool(traceTLSEnabledFlag, false, "use TLS for the connection to the trace collector")
	util.MustBindPFlag(traceTLSEnabledFlag, flags.Lookup(traceTLSEnabledFlag))

	flags.String(traceServiceNameFlag, "decant", "the service name reported on exported traces")
	util.MustBindPFlag(traceServiceNameFlag, flags.Lookup(traceServiceNameFlag))

	flags.Float64(traceSampleRatioFlag, 0.2, "the fraction of traces to sample")
	util.MustBindPFlag(traceSampleRatioFlag, flags.Lookup(traceSampleRatioFlag))

	flags.Duration(traceSlowThresholdFlag, 0, "export only traces whose root span took at least this long (0 exports all sampled traces)")
	util.MustBindPFlag(traceSlowThresholdFlag, flags.Lookup(traceSlowThresholdFlag))

	return cmd
}

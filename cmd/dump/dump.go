// Package dump contains the command streaming a registered source to
// standard output.
package dump

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.uber.org/zap"

	"github.com/decantio/decant/cmd/util"
	"github.com/decantio/decant/internal/build"
	"github.com/decantio/decant/pkg/logger"
	"github.com/decantio/decant/pkg/materialize"
	"github.com/decantio/decant/pkg/pipeline"
	"github.com/decantio/decant/pkg/session"
	"github.com/decantio/decant/pkg/source"
	"github.com/decantio/decant/pkg/telemetry"
)

const (
	sourcesFileFlag = "sources-file"
	sourceFlag      = "source"
	limitFlag       = "limit"

	logFormatFlag = "log-format"
	logLevelFlag  = "log-level"

	modeFlag        = "mode"
	snapshotDirFlag = "snapshot-dir"

	traceEnabledFlag       = "trace-enabled"
	traceEndpointFlag      = "trace-otlp-endpoint"
	traceTLSEnabledFlag    = "trace-otlp-tls-enabled"
	traceServiceNameFlag   = "trace-service-name"
	traceSampleRatioFlag   = "trace-sample-ratio"
	traceSlowThresholdFlag = "trace-slow-threshold"
)

// NewDumpCommand returns the command streaming one manifest source to
// standard output through a session's fast path.
func NewDumpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Stream the records of a registered source to stdout",
		Long:  `The dump command registers the sources of a manifest file in a fresh session and streams one of them, record per line, to standard output.`,
		RunE:  runDump,
		Args:  cobra.NoArgs,
	}

	flags := cmd.Flags()

	flags.String(sourcesFileFlag, "", "(required) the path of the sources manifest file")
	util.MustBindPFlag(sourcesFileFlag, flags.Lookup(sourcesFileFlag))

	flags.String(sourceFlag, "", "the manifest source to stream (may be omitted when the manifest defines exactly one source)")
	util.MustBindPFlag(sourceFlag, flags.Lookup(sourceFlag))

	flags.Int(limitFlag, 0, "stop after this many records (0 streams the whole source)")
	util.MustBindPFlag(limitFlag, flags.Lookup(limitFlag))

	return cmd
}

func runDump(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.MustNewLogger(viper.GetString(logFormatFlag), viper.GetString(logLevelFlag))

	mode, err := materialize.ParseRuntimeMode(viper.GetString(modeFlag))
	if err != nil {
		return err
	}

	if viper.GetBool(traceEnabledFlag) {
		shutdown := configureTracing(log)
		defer shutdown()
	}

	manifestPath := viper.GetString(sourcesFileFlag)
	if manifestPath == "" {
		return fmt.Errorf("missing required flag --%s", sourcesFileFlag)
	}

	manifest, err := source.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	name := viper.GetString(sourceFlag)
	if name == "" {
		if len(manifest.Sources) != 1 {
			return fmt.Errorf("manifest defines %d sources, choose one with --%s", len(manifest.Sources), sourceFlag)
		}
		name = manifest.Sources[0].Name
	}

	s := session.New(
		session.WithLogger(log),
		session.WithMode(mode),
		session.WithSnapshotDir(viper.GetString(snapshotDirFlag)),
		session.WithDumpWriter(cmd.OutOrStdout()),
	)
	defer s.Close()

	if err := manifest.Apply(s.Registry()); err != nil {
		return err
	}

	src, err := s.Registry().Lookup(name)
	if err != nil {
		return err
	}

	head := pipeline.NewSourceNode(name, src.Schema())
	iter, err := s.Iterate(ctx, head)
	if err != nil {
		return err
	}
	defer iter.Stop()

	schema := head.Schema()
	out := cmd.OutOrStdout()
	limit := viper.GetInt(limitFlag)

	for count := 0; limit <= 0 || count < limit; count++ {
		rec, err := iter.Next(ctx)
		if err != nil {
			if errors.Is(err, pipeline.ErrIteratorDone) {
				return ctx.Err()
			}
			return err
		}

		if _, err := fmt.Fprintln(out, schema.FormatRecord(rec)); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return nil
}

// configureTracing installs the global tracer provider and returns the
// function that must be called to flush and shut tracing down.
func configureTracing(log logger.Logger) func() {
	log.Info(fmt.Sprintf("🕵 tracing enabled: sampling ratio is %v and sending traces to '%s', tls: %t",
		viper.GetFloat64(traceSampleRatioFlag),
		viper.GetString(traceEndpointFlag),
		viper.GetBool(traceTLSEnabledFlag),
	))

	options := []telemetry.TracerOption{
		telemetry.WithOTLPEndpoint(
			viper.GetString(traceEndpointFlag),
		),
		telemetry.WithAttributes(
			semconv.ServiceNameKey.String(viper.GetString(traceServiceNameFlag)),
			semconv.ServiceVersionKey.String(build.Version),
		),
		telemetry.WithSamplingRatio(viper.GetFloat64(traceSampleRatioFlag)),
		telemetry.WithSlowTraceThreshold(viper.GetDuration(traceSlowThresholdFlag)),
	}

	if !viper.GetBool(traceTLSEnabledFlag) {
		options = append(options, telemetry.WithOTLPInsecure())
	}

	tp := telemetry.MustNewTracerProvider(options...)
	return func() {
		// The batch span processor can take several seconds to flush.
		ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
		defer cancel()
		if err := errors.Join(tp.ForceFlush(ctx), tp.Shutdown(ctx)); err != nil {
			log.Error("failed to shutdown tracing", zap.Error(err))
		}
	}
}

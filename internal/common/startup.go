package common

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const baseConfigFileName = "config"

// LoadConfig reads the base config from path (if present), merges any user supplied config files on top of it and
// unmarshals the result, together with any bound command line flags, into config.
func LoadConfig(config interface{}, path string, userSpecifiedConfigs []string) {
	viper.SetConfigName(baseConfigFileName)
	viper.AddConfigPath(path)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Error(err)
			os.Exit(-1)
		}
		log.Debugf("No base config found in %s, using defaults", path)
	}

	for _, configPath := range userSpecifiedConfigs {
		viper.SetConfigFile(configPath)
		if err := viper.MergeInConfig(); err != nil {
			log.Error(err)
			os.Exit(-1)
		}
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("MEMCLOAD")
	viper.AutomaticEnv()

	if err := viper.Unmarshal(config); err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}

// ConfigureLogging sets up logrus for an application. Output goes to logFile when one is given, otherwise stdout.
func ConfigureLogging(logFile string, level log.Level) error {
	log.SetFormatter(&log.TextFormatter{ForceColors: logFile == "", FullTimestamp: true, TimestampFormat: "2006.01.02 15:04:05"})
	log.SetLevel(level)
	if logFile == "" {
		log.SetOutput(os.Stdout)
		return nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "opening log file %s", logFile)
	}
	log.SetOutput(f)
	return nil
}

// BindCommandlineArguments makes every parsed command line flag visible through viper.
func BindCommandlineArguments() {
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}

// ServeMetrics exposes the default prometheus registry on /metrics. The returned func shuts the server down.
func ServeMetrics(port uint16) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		log.Infof("Serving metrics on port %d", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Infof("Stopping metrics server")
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Metrics server did not shut down cleanly")
		}
	}
}

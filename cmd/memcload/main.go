package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/G-Research/memcload/internal/common"
	"github.com/G-Research/memcload/internal/common/app"
	"github.com/G-Research/memcload/internal/memcload"
	"github.com/G-Research/memcload/internal/memcload/configuration"
)

const CustomConfigLocation string = "config"

var deviceTypes = []string{"idfa", "gaid", "adid", "dvid"}

func init() {
	pflag.StringSlice(CustomConfigLocation, []string{}, "Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")
	pflag.String("pattern", "/data/appsinstalled/*.tsv.gz", "Glob pattern of the files to load")
	pflag.Bool("dry", false, "Log the writes that would be made instead of making them")
	pflag.StringP("log", "l", "", "Log to this file instead of stdout")
	pflag.BoolP("test", "t", false, "Run the serialization self test and exit")
	pflag.String("idfa", "127.0.0.1:33013", "Address of the idfa shard")
	pflag.String("gaid", "127.0.0.1:33014", "Address of the gaid shard")
	pflag.String("adid", "127.0.0.1:33015", "Address of the adid shard")
	pflag.String("dvid", "127.0.0.1:33016", "Address of the dvid shard")
	pflag.Parse()
}

func main() {
	common.BindCommandlineArguments()
	for _, devType := range deviceTypes {
		if err := viper.BindPFlag("shards."+devType, pflag.Lookup(devType)); err != nil {
			log.Error(err)
			os.Exit(1)
		}
	}

	var config configuration.MemcLoadConfiguration
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)
	common.LoadConfig(&config, "./config/memcload", userSpecifiedConfigs)

	if err := common.ConfigureLogging(config.Log, logLevel(config)); err != nil {
		log.Error(err)
		os.Exit(1)
	}

	if config.Test {
		if err := memcload.SelfTest(); err != nil {
			log.WithError(err).Error("Self test failed")
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := config.Validate(); err != nil {
		log.WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	log.Infof("Memc loader started with options: %+v", config)
	if err := run(config); err != nil {
		log.WithError(err).Error("Unexpected error")
		os.Exit(1)
	}
}

func run(config configuration.MemcLoadConfiguration) error {
	if config.MetricsPort > 0 {
		shutdownMetricServer := common.ServeMetrics(config.MetricsPort)
		defer shutdownMetricServer()
	}

	loader, err := memcload.NewLoader(config)
	if err != nil {
		return err
	}
	defer func() {
		if err := loader.Close(); err != nil {
			log.WithError(err).Warn("Failed to close shard connections")
		}
	}()

	ctx, cancel := app.CreateContextWithShutdown()
	defer cancel()
	_, err = loader.Run(ctx)
	return err
}

func logLevel(config configuration.MemcLoadConfiguration) log.Level {
	if config.LogLevel != "" {
		if level, err := log.ParseLevel(config.LogLevel); err == nil {
			return level
		}
		log.Warnf("Unknown log level %q, using default", config.LogLevel)
	}
	if config.Dry {
		return log.DebugLevel
	}
	return log.InfoLevel
}

package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mvargas/tender-scout/internal/ai"
	"github.com/mvargas/tender-scout/internal/db"
	"github.com/mvargas/tender-scout/internal/logger"
	"github.com/mvargas/tender-scout/internal/secop"
)

const (
	app = "tender-scout"
)

type Config struct {
	Source string        `mapstructure:"source"`
	Gemini *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	Model      string `mapstructure:"model"`
	EmbedModel string `mapstructure:"embed-model"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "tender-scout imports Colombian public tenders and scores them against a company profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("gemini.api-key", "GEMINI_API_KEY"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY environment variable: %v", err)
	}
	if err := viper.BindEnv("source", "SECOP_SOURCE"); err != nil {
		log.Fatalf("binding SECOP_SOURCE environment variable: %v", err)
	}
	viper.SetDefault("source", "secop2")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is tender-scout.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app + ".yaml")
	// The config file is optional, env vars and flags cover everything.
	viper.ReadInConfig()
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}
	return config, nil
}

// deps bundles everything a subcommand needs against a live database.
type deps struct {
	Logger *zap.Logger
	Store  *db.Store
	Engine *ai.Engine
	Source secop.Source

	close func()
}

func setup(ctx context.Context) (*deps, error) {
	lg, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		lg.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		config = &Config{}
	}

	pool, err := db.Connect(ctx)
	if err != nil {
		lg.Fatal("connecting to database", zap.Error(err))
	}

	if err := db.ApplyMigrations(ctx, pool, lg); err != nil {
		pool.Close()
		lg.Fatal("applying migrations", zap.Error(err))
	}

	store := db.NewStore(pool)

	aiCfg := ai.Config{}
	if config.Gemini != nil {
		aiCfg.APIKey = config.Gemini.APIKey
		aiCfg.GenModel = config.Gemini.Model
		aiCfg.EmbedModel = config.Gemini.EmbedModel
	} else {
		aiCfg.APIKey = viper.GetString("gemini.api-key")
	}
	// CLI runs log token usage instead of writing the ledger; the server
	// persists it through the store recorder.
	engine, err := ai.NewEngine(ctx, aiCfg, ai.LogRecorder{Logger: lg}, lg)
	if err != nil {
		pool.Close()
		lg.Fatal("initializing ai engine", zap.Error(err))
	}

	reg, err := secop.LoadRegistry("")
	if err != nil {
		pool.Close()
		lg.Fatal("loading source registry", zap.Error(err))
	}
	sourceID := config.Source
	if sourceID == "" {
		sourceID = viper.GetString("source")
	}
	srcCfg, err := reg.Find(sourceID)
	if err != nil {
		pool.Close()
		lg.Fatal("unknown tender source", zap.String("source", sourceID), zap.Error(err))
	}

	return &deps{
		Logger: lg,
		Store:  store,
		Engine: engine,
		Source: secop.NewClient(*srcCfg, lg),
		close:  pool.Close,
	}, nil
}

func (d *deps) Close() {
	d.close()
}

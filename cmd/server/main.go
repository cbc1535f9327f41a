package main // Entry point package

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong" // CLI parsing

	"github.com/iliyamo/gamezone-reservation/internal/config"  // env loading
	"github.com/iliyamo/gamezone-reservation/internal/logging" // slog setup
)

// CLI is the command tree.  serve runs when no command is given.
type CLI struct {
	LogLevel string `help:"Log level (debug, info, warn, error)." env:"LOG_LEVEL" default:"info"`

	Serve        ServeCmd        `cmd:"" default:"1" help:"Run the HTTP API (default)."`
	Migrate      MigrateCmd      `cmd:"" help:"Apply pending schema migrations and exit."`
	Sweep        SweepCmd        `cmd:"" help:"End stale sessions and delete expired unused reservations."`
	SeedAdmin    SeedAdminCmd    `cmd:"seed-admin" help:"Create the admin account from ADMIN_EMAIL and ADMIN_PASSWORD if missing."`
	SeedStations SeedStationsCmd `cmd:"seed-stations" help:"Insert demo stations when none exist."`
	Consume      ConsumeCmd      `cmd:"" help:"Consume domain events and append them to the events log."`

	logger *slog.Logger `kong:"-"`
}

// AfterApply configures logging once flags and env are resolved.
func (c *CLI) AfterApply() error {
	c.logger = logging.Setup(c.LogLevel)
	return nil
}

func main() {
	// A local .env fills in anything the environment does not set.
	config.LoadDotenv()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("gamezone"),
		kong.Description("GameZone gaming station reservation backend"),
		kong.UsageOnError(),
		kong.Bind(&cli),
	)
	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

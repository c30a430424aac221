// Command ftpush uploads files to an FTP or SFTP server in resumable
// chunks. Interrupted transfers resume from the bytes the server already
// holds; completed files appear atomically under their final names.
//
// Connection settings come from flags, FTPUSH_* environment variables
// (a .env file in the working directory is loaded if present), or a saved
// profile, in that order of precedence.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/opd-ai/ftpush"
	"github.com/opd-ai/ftpush/listing"
	"github.com/opd-ai/ftpush/profile"
	"github.com/opd-ai/ftpush/transfer"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// A .env in the working directory supplies FTPUSH_* defaults. Its
	// absence is the normal case.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}

	store := profileStore()
	saved, _, loadErr := store.Load()
	if loadErr != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", loadErr)
	}

	fs := flag.NewFlagSet("ftpush", flag.ContinueOnError)
	var (
		protocol   = fs.String("protocol", envOr("FTPUSH_PROTOCOL", orStr(saved.Protocol, "sftp")), "transfer protocol: ftp or sftp")
		host       = fs.String("host", envOr("FTPUSH_HOST", saved.Host), "server hostname")
		port       = fs.Int("port", envIntOr("FTPUSH_PORT", saved.Port), "server port (0 selects the protocol default)")
		user       = fs.String("user", envOr("FTPUSH_USER", saved.User), "login name")
		credential = fs.String("credential", envOr("FTPUSH_CREDENTIAL", saved.Credential), "password, private-key path, or inline key")
		remoteDir  = fs.String("remote-dir", envOr("FTPUSH_REMOTE_DIR", saved.RemoteDir), "remote base directory")
		chunkSize  = fs.Int64("chunk-size", envInt64Or("FTPUSH_CHUNK_SIZE", saved.ChunkSize), "chunk size in bytes (0 selects the default)")
		maxRetries = fs.Int("max-retries", envIntOr("FTPUSH_MAX_RETRIES", saved.MaxRetries), "per-operation attempt budget (0 selects the default)")
		timeout   = fs.Duration("connect-timeout", 0, "connection timeout (0 selects the default)")
		opTimeout = fs.Duration("operation-timeout", 0, "per-operation I/O timeout (0 selects the default)")

		localRoot = fs.String("root", ".", "local directory relative file paths resolve against")
		all       = fs.Bool("all", false, "upload every regular file under -root")
		exclude   = fs.String("exclude", "", "comma-separated directory names to skip with -all")

		saveProfile  = fs.Bool("save-profile", false, "save the resolved connection settings for next time")
		resetProfile = fs.Bool("reset-profile", false, "delete the saved profile and exit")

		logFile = fs.String("log-file", envOr("FTPUSH_LOG_FILE", ""), "append logs to this rotating file instead of stderr")
		verbose = fs.Bool("verbose", false, "enable debug logging")
	)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ftpush [flags] FILE...\n       ftpush [flags] -all\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	setupLogging(*logFile, *verbose)

	if *resetProfile {
		if err := store.Reset(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Println("profile reset")
		return 0
	}

	if *port == 0 {
		*port = defaultPort(*protocol)
	}

	if *saveProfile {
		err := store.Save(profile.Profile{
			Protocol:   *protocol,
			Host:       *host,
			Port:       *port,
			User:       *user,
			Credential: *credential,
			RemoteDir:  *remoteDir,
			ChunkSize:  *chunkSize,
			MaxRetries: *maxRetries,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: save profile: %v\n", err)
			return 1
		}
	}

	files, err := resolveFiles(fs.Args(), *localRoot, *all, *exclude)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fs.Usage()
		return 2
	}

	engine, err := ftpush.New(ftpush.Options{LocalRoot: *localRoot})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	orch := ftpush.NewOrchestrator(engine, ftpush.Target{
		Protocol:         *protocol,
		Host:             *host,
		Port:             *port,
		User:             *user,
		Credential:       *credential,
		RemoteDir:        *remoteDir,
		ChunkSize:        *chunkSize,
		MaxRetries:       *maxRetries,
		ConnectTimeout:   *timeout,
		OperationTimeout: *opTimeout,
	}, printProgress)

	states, err := orch.UploadAll(files)
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "upload failed: %v\n", err)
		if te, ok := transfer.AsError(err); ok && te.Offset > 0 {
			fmt.Fprintf(os.Stderr, "rerun to resume %s from byte %d\n", te.File, te.Offset)
		}
		return 1
	}

	color.New(color.FgGreen, color.Bold).Printf("uploaded %d file(s)\n", len(states))
	return 0
}

// printProgress renders one line per confirmed chunk.
func printProgress(p ftpush.Progress) {
	line := p.State.String()
	if p.Speed > 0 {
		line += fmt.Sprintf(" at %s/s", humanBytes(int64(p.Speed)))
	}
	if p.State.Complete {
		color.New(color.FgGreen).Println(line + " done")
		return
	}
	color.New(color.FgCyan).Println(line)
}

// resolveFiles turns the CLI file selection into relative upload paths.
func resolveFiles(args []string, root string, all bool, exclude string) ([]string, error) {
	if all {
		if len(args) > 0 {
			return nil, fmt.Errorf("-all and explicit files are mutually exclusive")
		}
		var opts listing.Options
		if exclude != "" {
			opts.Exclude = strings.Split(exclude, ",")
		}
		return listing.Files(root, opts)
	}
	return args, nil
}

// profileStore locates the profile file, honoring FTPUSH_PROFILE.
func profileStore() *profile.Store {
	if path := os.Getenv("FTPUSH_PROFILE"); path != "" {
		return profile.NewStore(path)
	}
	path, err := profile.DefaultPath()
	if err != nil {
		path = ".ftpush-profile.json"
	}
	return profile.NewStore(path)
}

// setupLogging configures logrus output, rotation, and level.
func setupLogging(logFile string, verbose bool) {
	if logFile != "" {
		logrus.SetOutput(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
}

func defaultPort(protocol string) int {
	if strings.EqualFold(protocol, "sftp") {
		return 22
	}
	return 21
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func orStr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// humanBytes renders a byte count with a binary unit suffix.
func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Package config parses the process's command-line flags into the
// immutable Config used to wire up the rest of the server.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

type Role string

const (
	RolePrimary Role = "master"
	RoleReplica Role = "slave"
)

// Config holds the process's command-line flags.
type Config struct {
	Port int

	Dir        string
	DBFilename string

	Role           Role
	ReplicaOfHost  string
	ReplicaOfPort  int

	Verbose bool
}

// Parse parses args (typically os.Args[1:]) into a Config.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("redisgo", flag.ContinueOnError)

	port := fs.Int("port", 6379, "TCP port to listen on")
	dir := fs.String("dir", "", "snapshot directory")
	dbfilename := fs.String("dbfilename", "", "snapshot file name")
	replicaof := fs.String("replicaof", "", `act as a replica of "<host> <port>"`)
	verbose := fs.Bool("verbose", false, "enable human-readable debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:       *port,
		Dir:        *dir,
		DBFilename: *dbfilename,
		Role:       RolePrimary,
		Verbose:    *verbose,
	}

	if *replicaof != "" {
		host, portStr, err := splitReplicaOf(*replicaof)
		if err != nil {
			return nil, err
		}
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --replicaof port %q: %w", portStr, err)
		}
		cfg.Role = RoleReplica
		cfg.ReplicaOfHost = host
		cfg.ReplicaOfPort = p
	}

	return cfg, nil
}

func splitReplicaOf(v string) (host, port string, err error) {
	fields := strings.Fields(v)
	if len(fields) != 2 {
		return "", "", fmt.Errorf(`--replicaof must be "<host> <port>", got %q`, v)
	}
	return fields[0], fields[1], nil
}

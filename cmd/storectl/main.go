// storectl is an operator CLI for a storage root: it opens namespaces
// directly on disk, without going through the daemon. Do not point it
// at a root a running daemon owns; the store is single-process.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/onnwee/nstore/internal/logger"
	"github.com/onnwee/nstore/internal/store"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: storectl [-root DIR] [-mode MODE] COMMAND [ARGS]

Commands:
  list                      list namespaces under the root
  keys NS                   list live keys in a namespace
  get NS KEY                print one entry as JSON
  set NS KEY VALUE          store a string value
  del NS KEY                delete a key
  prune NS                  drop expired entries
  clear NS                  wipe a namespace (cache file, backup, blobs)
  size NS                   report on-disk usage
`)
	os.Exit(2)
}

// argsWanted maps each namespace command to the arguments it needs
// beyond the namespace itself.
var argsWanted = map[string]int{
	"keys": 0, "get": 1, "set": 2, "del": 1,
	"prune": 0, "clear": 0, "size": 0,
}

func main() {
	_ = godotenv.Load()

	root := flag.String("root", os.Getenv("STORAGE_ROOT"), "storage root directory")
	modeStr := flag.String("mode", "flush", "store mode: auto, flush, memory")
	ttl := flag.Duration("ttl", 0, "expiry for set (0 = never)")
	flag.Usage = usage
	flag.Parse()

	logger.Init("warn")

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	mode, err := store.ParseMode(*modeStr)
	if err != nil {
		fail(err)
	}

	switch cmd {
	case "list":
		if err := listNamespaces(*root); err != nil {
			fail(err)
		}
	case "keys", "get", "set", "del", "prune", "clear", "size":
		want, ok := argsWanted[cmd]
		if !ok || flag.NArg() < 2+want {
			usage()
		}
		st, err := store.Open(flag.Arg(1), store.Options{Root: *root, Mode: mode})
		if err != nil {
			fail(err)
		}
		// Close before exiting either way: in auto mode the mutation
		// of a command that later errored must still reach disk.
		runErr := runCommand(st, cmd, flag.Args()[2:], *ttl)
		if cerr := st.Close(); runErr == nil {
			runErr = cerr
		}
		if runErr != nil {
			fail(runErr)
		}
	default:
		usage()
	}
}

func runCommand(st *store.Store, cmd string, args []string, ttl time.Duration) error {
	switch cmd {
	case "keys":
		keys, err := st.Keys()
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(k)
		}

	case "get":
		entry, ok := st.Entry(args[0])
		if !ok {
			return fmt.Errorf("%w: %q", store.ErrKeyNotFound, args[0])
		}
		out := map[string]any{
			"key":   args[0],
			"kind":  entry.Kind(),
			"value": entry.Value(),
		}
		if at, set := entry.Expires(); set {
			out["expires"] = at.UTC().Format(time.RFC3339Nano)
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))

	case "set":
		opts := []store.SetOption{}
		if ttl > 0 {
			opts = append(opts, store.WithExpiry(store.ExpiresIn(ttl)))
		}
		return st.Set(args[0], args[1], opts...)

	case "del":
		return st.Delete(args[0])

	case "prune":
		changed, err := st.Prune()
		if err != nil {
			return err
		}
		if changed {
			fmt.Println("pruned")
		} else {
			fmt.Println("nothing to prune")
		}

	case "clear":
		return st.Clear()

	case "size":
		fmt.Printf("%d bytes in %d files\n", st.Size(true), len(st.Files(true)))
	}
	return nil
}

func listNamespaces(root string) error {
	if root == "" {
		return fmt.Errorf("no storage root: pass -root or set STORAGE_ROOT")
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && store.ValidToken(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "storectl:", err)
	os.Exit(1)
}

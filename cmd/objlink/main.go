package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"github.com/objlink/objlink/bridge"
	"github.com/objlink/objlink/config"
	"github.com/objlink/objlink/metrics"
	"github.com/objlink/objlink/proc"
	"github.com/objlink/objlink/session"
	"github.com/objlink/objlink/wire"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		workerCmd   = flag.String("worker", "", "Worker command line (overrides config)")
		resolveName = flag.String("resolve", "", "Resolve a name and show what it is")
		className   = flag.String("class", "", "Show a class descriptor")
		callName    = flag.String("call", "", "Function to call")
		callArgs    = flag.String("args", "", "Arguments for -call (comma-separated)")
		list        = flag.String("list", "", "List names: classes, funcs, consts or globals")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil && *workerCmd == "" {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Usage: objlink -worker 'php server.php' [-resolve name | -class name | -call name [-args a,b] | -list classes]")
		fmt.Fprintln(os.Stderr, "       objlink -config objlink.yaml -i  (interactive mode)")
		os.Exit(1)
	}
	if *workerCmd != "" {
		if err != nil {
			cfg = config.Default()
		}
		cfg.Worker.Command = strings.Fields(*workerCmd)
	}

	logger, err := cfg.BuildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	session.SetLogger(logger.Named("session"))
	bridge.SetLogger(logger.Named("bridge"))
	proc.SetLogger(logger.Named("proc"))

	var met *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		if met, err = metrics.New(reg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			http.ListenAndServe(cfg.Metrics.Listen, mux)
		}()
	}

	worker, err := proc.Launch(cfg.Worker.Command,
		proc.WithDir(cfg.Worker.Dir),
		proc.WithEnv(cfg.Worker.Env),
		proc.WithShutdownGrace(cfg.Worker.ShutdownGrace))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer worker.Close()

	b := bridge.New(worker,
		bridge.WithCallTimeout(cfg.Call.Timeout),
		bridge.WithMetrics(met),
		bridge.WithSessionOptions(session.WithDrainWindow(cfg.Call.DrainWindow)))
	defer b.Close()

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(b, strings.Join(cfg.Worker.Command, " ")); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(b, *resolveName, *className, *callName, *callArgs, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(b *bridge.Bridge, resolveName, className, callName, callArgs, list string) error {
	switch {
	case list != "":
		return runList(b, list)
	case resolveName != "":
		return runResolve(b, resolveName)
	case className != "":
		return runClass(b, className)
	case callName != "":
		return runCall(b, callName, callArgs)
	default:
		fmt.Println("Nothing to do. Use -resolve, -class, -call, -list or -i.")
		return nil
	}
}

func runList(b *bridge.Bridge, kind string) error {
	var names []string
	var err error
	switch kind {
	case "classes":
		names, err = b.ListClasses()
	case "funcs":
		names, err = b.ListFunctions()
	case "consts":
		names, err = b.ListConstants()
	case "globals":
		names, err = b.ListGlobals()
	default:
		return fmt.Errorf("unknown list kind %q", kind)
	}
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func runResolve(b *bridge.Bridge, name string) error {
	kind, canonical, err := b.ResolveName(name)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", kind, canonical)

	switch kind {
	case bridge.KindConstant:
		v, err := b.GetConst(canonical)
		if err != nil {
			return err
		}
		fmt.Printf("value: %s\n", formatValue(v))
	case bridge.KindGlobal:
		v, err := b.GetGlobal(canonical)
		if err != nil {
			return err
		}
		fmt.Printf("value: %s\n", formatValue(v))
	}
	return nil
}

func runClass(b *bridge.Bridge, name string) error {
	cls, err := b.ResolveClass(name)
	if err != nil {
		return err
	}

	what := "class"
	if cls.Interface {
		what = "interface"
	} else if cls.Abstract {
		what = "abstract class"
	}
	fmt.Printf("%s %s\n", what, cls.Name)
	if cls.Parent != nil {
		fmt.Printf("extends %s\n", cls.Parent.Name)
	}
	if cls.Doc != "" {
		fmt.Printf("\n%s\n", cls.Doc)
	}

	if len(cls.Consts) > 0 {
		fmt.Println("\nConstants:")
		for _, name := range sortedKeys(cls.Consts) {
			fmt.Printf("  %s = %v\n", name, cls.Consts[name])
		}
	}
	if len(cls.Properties) > 0 {
		fmt.Println("\nProperties:")
		for _, name := range sortedKeys(cls.Properties) {
			fmt.Printf("  %s\n", name)
		}
	}
	if len(cls.Methods) > 0 {
		fmt.Println("\nMethods:")
		for _, name := range sortedKeys(cls.Methods) {
			fmt.Printf("  %s\n", formatMethod(cls.Methods[name]))
		}
	}
	return nil
}

func runCall(b *bridge.Bridge, name, rawArgs string) error {
	f, err := b.ResolveFunc(name)
	if err != nil {
		return err
	}

	var args []any
	if rawArgs != "" {
		for _, raw := range strings.Split(rawArgs, ",") {
			args = append(args, convertArg(raw))
		}
	}

	result, err := f.Call(args...)
	if err != nil {
		return err
	}
	fmt.Println(formatValue(result))
	return nil
}

func formatMethod(m bridge.MethodInfo) string {
	var params []string
	for _, p := range m.Params {
		s := "$" + p.Name
		if p.Type != nil {
			s = p.Type.Name + " " + s
		}
		if p.Variadic {
			s = "..." + s
		}
		params = append(params, s)
	}
	sig := m.Name + "(" + strings.Join(params, ", ") + ")"
	if m.Returns != nil {
		sig += ": " + m.Returns.Name
	}
	if m.Static {
		sig = "static " + sig
	}
	return sig
}

// formatValue renders a decoded value for the terminal without further
// round trips.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case *wire.Array:
		return x.String()
	case *bridge.Object:
		return x.String()
	case *bridge.Resource:
		return x.String()
	case string:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

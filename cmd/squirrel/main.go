package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/sim82/squirrel-go/bytecode"
	"github.com/sim82/squirrel-go/value"
	"github.com/sim82/squirrel-go/vm"
)

const (
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func main() {
	var (
		profile     = flag.Bool("profile", false, "print per-opcode dispatch counts after execution")
		trace       = flag.Bool("trace", false, "log every call/tailcall/return to stderr")
		interactive = flag.Bool("i", false, "interactive step-debugger")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: squirrel [-profile] [-trace] <file.cnut>")
		fmt.Fprintln(os.Stderr, "       squirrel -i <file.cnut>  (interactive step-debugger)")
		os.Exit(1)
	}
	bcFile := flag.Arg(0)

	if *interactive {
		if err := runInteractive(bcFile); err != nil {
			printErr(err)
			os.Exit(1)
		}
		return
	}

	if err := run(bcFile, *profile, *trace); err != nil {
		printErr(err)
		os.Exit(1)
	}
}

// printErr writes err to stderr, in red when stderr is a terminal, plain
// otherwise so redirected/piped output stays clean.
func printErr(err error) {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprintf(os.Stderr, "%sError: %v%s\n", ansiRed, err, ansiReset)
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func run(bcFile string, profile, trace bool) error {
	f, err := os.Open(bcFile)
	if err != nil {
		return fmt.Errorf("open %s: %w", bcFile, err)
	}
	defer f.Close()

	closure, err := bytecode.Load(f)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}

	ex := vm.New()
	ex.InstrProfiling = profile
	ex.TraceCallReturn = trace
	if trace {
		l, _ := zap.NewDevelopment()
		vm.SetLogger(l)
	}
	registerNatives(ex)

	if err := ex.Stack().Push(closure); err != nil {
		return fmt.Errorf("push closure: %w", err)
	}
	if err := ex.PushRootTable(); err != nil {
		return fmt.Errorf("push root table: %w", err)
	}
	if err := ex.Call(1); err != nil {
		return fmt.Errorf("call: %w", err)
	}

	result, err := ex.Execute()
	if err != nil {
		ex.PrintState(os.Stderr)
		return fmt.Errorf("execute: %w", err)
	}

	fmt.Printf("Result: %s\n", result.Display())

	if profile {
		fmt.Fprintln(os.Stderr, "\n--- opcode profile ---")
		for op, n := range ex.ProfileCounts() {
			fmt.Fprintf(os.Stderr, "  %s: %d\n", op, n)
		}
	}

	return nil
}

// registerNatives installs the minimal native-function set a loaded script
// can call through the root table: print writes its argument's display form
// to stdout and returns Null.
func registerNatives(ex *vm.Executor) {
	print := vm.NewNativeClosure("print", func(frame value.FrameAccessor) error {
		fmt.Println(frame.Value(1).Display())
		frame.SetValue(0, value.Null)
		return nil
	}, 2)
	ex.AddNativeFunc("print", print)
}

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"minikern/pkg/arch"
	"minikern/pkg/kernel"
	"minikern/pkg/loader"
	"minikern/pkg/mem"
	"minikern/pkg/proc"
)

var demoChildren int

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted fork/exec/wait scenario",
	Long: `Boot an init process, fork a batch of children, have each child exec
the worker program, and collect their exit statuses with waitpid. The process
table is printed while the children run and again after they are reaped.`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().IntVarP(&demoChildren, "children", "n", 3, "number of children init forks")
}

const initImage = `
name: init
entry: 0x400000
segments:
  - vaddr: 0x400000
    size: 4096
    data: "init program text"
`

const workerImage = `
name: worker
entry: 0x400000
segments:
  - vaddr: 0x400000
    size: 4096
    data: "worker program text"
`

// forkedMark tags the trapframe handed to a forked child so the shared init
// program can tell the child copy from the bootstrap instance. The child
// index rides in the low bits.
const forkedMark = 0xfe << 16

func runDemo(cmd *cobra.Command, args []string) error {
	log := newLogger()
	reg := prometheus.NewRegistry()
	serveMetrics(reg, log)

	vol := loader.NewVolume()
	vol.Register("/bin/init", []byte(initImage))
	vol.Register("/bin/worker", []byte(workerImage))

	k := kernel.New(kernel.Config{
		Volume:   vol,
		Memory:   mem.NewAllocator(memPages),
		Usermode: demoProgram,
		MaxProcs: maxProcs,
		Logger:   log,
		Metrics:  kernel.NewMetrics(reg),
	})

	ctx, err := k.Bootstrap("/bin/init", []string{"init", strconv.Itoa(demoChildren)})
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	ctx.Thread.Join()

	fmt.Println("\nfinal process table:")
	printTable(k.Table().Snapshot())
	return nil
}

// demoProgram is the user-mode side of the demo. One function serves every
// process; it dispatches on the program name and, for init, on the forked
// mark in the trapframe.
func demoProgram(k *kernel.Kernel, ctx *kernel.Context, tf *arch.Trapframe) {
	switch {
	case ctx.Proc.Name() == "worker":
		runWorker(k, ctx, tf)
	case tf.A2&forkedMark == forkedMark:
		runForkedChild(k, ctx, tf)
	default:
		runInit(k, ctx, tf)
	}
}

// runInit forks the requested children, shows the table while they run, then
// waits for each and reports its status.
func runInit(k *kernel.Kernel, ctx *kernel.Context, tf *arch.Trapframe) {
	self := k.Getpid(ctx)
	n := readArgInt(ctx, tf, 1, 3)
	fmt.Printf("init: pid %d, forking %d children\n", self, n)

	var pids []proc.PID
	for i := 0; i < n; i++ {
		ctf := tf.Clone()
		ctf.A2 = forkedMark | uint32(i)
		pid, err := k.Fork(ctx, ctf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "init: fork: %v\n", err)
			k.Exit(ctx, 1)
		}
		pids = append(pids, pid)
	}

	fmt.Println("\nprocess table after forking:")
	printTable(k.Table().Snapshot())

	statusAddr := mem.UserAddr(tf.SP) - 8
	for _, pid := range pids {
		if _, err := k.Waitpid(ctx, pid, statusAddr, 0); err != nil {
			fmt.Fprintf(os.Stderr, "init: waitpid %d: %v\n", pid, err)
			continue
		}
		status, err := ctx.Proc.AddressSpace().CopyInWord(statusAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "init: read status: %v\n", err)
			continue
		}
		fmt.Printf("init: child %d exited with code %d\n", pid, arch.ExitCode(int(status)))
	}
	k.Exit(ctx, 0)
}

// runForkedChild is the child-side continuation of init's fork: it replaces
// itself with the worker program, passing its index as an argument.
func runForkedChild(k *kernel.Kernel, ctx *kernel.Context, tf *arch.Trapframe) {
	idx := int(tf.A2 &^ forkedMark)

	as := ctx.Proc.AddressSpace()
	sp := mem.UserAddr(tf.SP)
	pathAddr := sp - 0x100
	argvAddr := sp - 0xc0
	strAddr := sp - 0x80

	args := []string{"worker", strconv.Itoa(idx)}
	fail := func(err error) {
		fmt.Fprintf(os.Stderr, "child %d: exec: %v\n", k.Getpid(ctx), err)
		k.Exit(ctx, 127)
	}
	if err := as.CopyOut(append([]byte("/bin/worker"), 0), pathAddr); err != nil {
		fail(err)
	}
	for i, a := range args {
		if err := as.CopyOut(append([]byte(a), 0), strAddr); err != nil {
			fail(err)
		}
		if err := as.CopyOutWord(uint32(strAddr), argvAddr+mem.UserAddr(4*i)); err != nil {
			fail(err)
		}
		strAddr += mem.UserAddr(len(a) + 1)
	}
	if err := as.CopyOutWord(0, argvAddr+mem.UserAddr(4*len(args))); err != nil {
		fail(err)
	}
	fail(k.Execv(ctx, pathAddr, argvAddr))
}

// runWorker reads its marshalled arguments back out of user memory and exits
// with its index as the code, so init can tell the children apart.
func runWorker(k *kernel.Kernel, ctx *kernel.Context, tf *arch.Trapframe) {
	idx := readArgInt(ctx, tf, 1, 0)
	fmt.Printf("worker: pid %d, index %d, argc %d\n", k.Getpid(ctx), idx, tf.A0)
	k.Exit(ctx, idx)
}

// readArgInt decodes argument i of the exec-style argv the trapframe points
// at, falling back to def when absent or malformed.
func readArgInt(ctx *kernel.Context, tf *arch.Trapframe, i int, def int) int {
	if int(tf.A0) <= i {
		return def
	}
	as := ctx.Proc.AddressSpace()
	ptr, err := as.CopyInWord(mem.UserAddr(tf.A1) + mem.UserAddr(4*i))
	if err != nil {
		return def
	}
	s, err := as.CopyInString(mem.UserAddr(ptr), kernel.ArgMax)
	if err != nil {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func printTable(infos []proc.Info) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("PID", "Name", "Status", "Parent", "Children", "Pages", "Exit")
	for _, in := range infos {
		parent := "-"
		if in.Parent != 0 {
			parent = strconv.Itoa(int(in.Parent))
		}
		exit := "-"
		if in.Status == proc.StatusZombie {
			exit = strconv.Itoa(in.ExitCode)
		}
		table.Append([]string{
			strconv.Itoa(int(in.PID)),
			in.Name,
			in.Status.String(),
			parent,
			strconv.Itoa(in.Children),
			strconv.Itoa(in.Pages),
			exit,
		})
	}
	table.Render()
}

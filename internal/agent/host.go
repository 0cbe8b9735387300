package agent

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/rileyhilliard/pstop/internal/wire"
)

// TicksPerSecond converts gopsutil's CPU seconds into the clock ticks the
// wire format carries (USER_HZ on Linux).
const TicksPerSecond = 100

// Host reads raw counters from the machine.
type Host interface {
	CPUTimes(ctx context.Context) ([]cpu.TimesStat, error)
	Memory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	Swap(ctx context.Context) (*mem.SwapMemoryStat, error)
	Processes(ctx context.Context) ([]wire.Process, error)
}

// SystemHost reads the local machine through gopsutil.
type SystemHost struct{}

// CPUTimes returns cumulative per-core times.
func (SystemHost) CPUTimes(ctx context.Context) ([]cpu.TimesStat, error) {
	times, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "reading per-cpu times")
	}
	return times, nil
}

// Memory returns virtual memory statistics.
func (SystemHost) Memory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading virtual memory")
	}
	return vm, nil
}

// Swap returns swap statistics.
func (SystemHost) Swap(ctx context.Context) (*mem.SwapMemoryStat, error) {
	sw, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading swap memory")
	}
	return sw, nil
}

// Processes lists every process. Processes that exit while they are being
// read are skipped; fields that cannot be read (permissions) stay zero.
func (SystemHost) Processes(ctx context.Context) ([]wire.Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing processes")
	}

	out := make([]wire.Process, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		wp := wire.Process{PID: int(p.Pid), Name: name}

		if ppid, err := p.PpidWithContext(ctx); err == nil {
			wp.PPID = int(ppid)
		}
		if status, err := p.StatusWithContext(ctx); err == nil && len(status) > 0 {
			wp.State = stateLetter(status[0])
		}
		if user, err := p.UsernameWithContext(ctx); err == nil {
			wp.User = user
		}
		if times, err := p.TimesWithContext(ctx); err == nil {
			wp.UTime = secondsToTicks(times.User)
			wp.STime = secondsToTicks(times.System)
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
			wp.RSS = mi.RSS
			wp.VSS = mi.VMS
		}
		if nice, err := p.NiceWithContext(ctx); err == nil {
			wp.Nice = int(nice)
		}
		if threads, err := p.NumThreadsWithContext(ctx); err == nil {
			wp.Threads = int(threads)
		}
		out = append(out, wp)
	}
	return out, nil
}

func secondsToTicks(s float64) uint64 {
	if s <= 0 {
		return 0
	}
	return uint64(s*TicksPerSecond + 0.5)
}

// stateLetter maps gopsutil's status words to the ps(1) letters.
func stateLetter(status string) string {
	switch status {
	case process.Running:
		return "R"
	case process.Sleep:
		return "S"
	case process.Stop:
		return "T"
	case process.Idle:
		return "I"
	case process.Zombie:
		return "Z"
	case process.Wait:
		return "W"
	case process.Lock:
		return "L"
	case "":
		return ""
	default:
		return strings.ToUpper(status[:1])
	}
}

func toCoreSample(no int, t cpu.TimesStat) wire.CoreSample {
	return wire.CoreSample{
		No:      no,
		User:    secondsToTicks(t.User),
		Nice:    secondsToTicks(t.Nice),
		System:  secondsToTicks(t.System),
		Idle:    secondsToTicks(t.Idle),
		IOWait:  secondsToTicks(t.Iowait),
		IRQ:     secondsToTicks(t.Irq),
		SoftIRQ: secondsToTicks(t.Softirq),
		Steal:   secondsToTicks(t.Steal),
	}
}

package thread

import "testing"

func TestStateName(t *testing.T) {
	cases := map[string]string{
		"R": "RUNNABLE",
		"S": "SLEEPING",
		"D": "BLOCKED",
		"T": "STOPPED",
		"t": "TRACED",
		"Z": "ZOMBIE",
		"X": "TERMINATED",
		"I": "IDLE",
		"W": "UNKNOWN",
		"":  "UNKNOWN",
	}
	for letter, want := range cases {
		if got := StateName(letter); got != want {
			t.Fatalf("%q: expected %s, got %s", letter, want, got)
		}
	}
}

func TestTicksToNs(t *testing.T) {
	if got := ticksToNs(150); got != 1_500_000_000 {
		t.Fatalf("expected 1.5s in ns, got %d", got)
	}
	if got := ticksToNs(0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestParseStack(t *testing.T) {
	data := []byte("[<0>] futex_wait_queue+0x60/0xa0\n[<0>] futex_wait+0x175/0x260\n\n[<0>] do_syscall_64+0x5b/0x80\n")

	frames := parseStack(data, 0)
	want := []string{"futex_wait_queue+0x60/0xa0", "futex_wait+0x175/0x260", "do_syscall_64+0x5b/0x80"}
	if len(frames) != len(want) {
		t.Fatalf("expected %d frames, got %v", len(want), frames)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Fatalf("frame %d: expected %q, got %q", i, want[i], frames[i])
		}
	}

	if limited := parseStack(data, 2); len(limited) != 2 {
		t.Fatalf("expected depth to cap frames, got %v", limited)
	}
	if empty := parseStack(nil, 5); len(empty) != 0 {
		t.Fatalf("expected no frames, got %v", empty)
	}
}

func TestThreadNameFallback(t *testing.T) {
	if got := threadName(" worker ", 7); got != "worker" {
		t.Fatalf("expected worker, got %q", got)
	}
	if got := threadName("", 7); got != "thread-7" {
		t.Fatalf("expected thread-7, got %q", got)
	}
}

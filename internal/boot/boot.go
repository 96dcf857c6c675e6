// Package boot models the entry sequence a real image's _start would
// perform before jumping to C/Rust kernel_main: check the simulated BSS
// and stack guard, then hand control to the kernel composition root.
// Start does not zero the BSS itself; a non-zero BSS byte is a boot error.
// Grounded on the teacher's top-level main() wiring generalized from
// "open block device backend, serve" to "construct kernel, boot it."
package boot

import (
	"fmt"

	"github.com/behrlich/aetheros/internal/bootcfg"
	"github.com/behrlich/aetheros/internal/kernel"
	"github.com/behrlich/aetheros/internal/logging"
)

// stackGuardWord is the value NewImage stores as the image's stack guard
// so Start can assert nothing has overwritten it, the way a real image's
// linker script places a canary past the stack.
const stackGuardWord = 0xDEADC0DE

// Image is the simulated memory image _start would otherwise zero and
// lay a stack atop.
type Image struct {
	BSS        []byte
	StackTop   uint64
	stackGuard uint32
}

// NewImage returns a zeroed BSS region of the given size and a stack top
// address, with the guard word armed.
func NewImage(bssSize int, stackTop uint64) *Image {
	return &Image{
		BSS:        make([]byte, bssSize),
		StackTop:   stackTop,
		stackGuard: stackGuardWord,
	}
}

// GuardIntact reports whether the stack guard word is still what _start
// planted, the simulated analogue of a stack-overflow canary check.
func (img *Image) GuardIntact() bool {
	return img.stackGuard == stackGuardWord
}

// Start performs the simulated _start sequence: verify the BSS is zero,
// verify the stack guard, load the boot configuration, construct the
// kernel, and run Boot. dtb is the raw device-tree blob a real bootloader
// would pass in x0; it may be empty to force the static driver fallback.
func Start(img *Image, dtb []byte, configPath string) (*kernel.Kernel, error) {
	for _, b := range img.BSS {
		if b != 0 {
			return nil, fmt.Errorf("boot: BSS not zeroed")
		}
	}
	if !img.GuardIntact() {
		return nil, fmt.Errorf("boot: stack guard corrupted")
	}

	var cfg bootcfg.Config
	if configPath != "" {
		loaded, err := bootcfg.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("boot: load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = bootcfg.Default()
	}

	logging.Info("boot: entering kernel_main", "stack_top", fmt.Sprintf("%#x", img.StackTop))

	k := kernel.New(cfg)
	if err := k.Boot(dtb); err != nil {
		return nil, fmt.Errorf("boot: kernel boot failed: %w", err)
	}
	return k, nil
}

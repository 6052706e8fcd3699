// Package platform bootstraps the GLFW window, the Vulkan instance and
// device, and the presentation swapchain the render graph's frame output
// is blitted into. It is the one package in this module allowed to know
// about windowing — everything else only ever sees vk.Device/vk.Image
// handles it hands out.
package platform

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/internal/rgerr"
	"github.com/dieselvk/radgraph/internal/rlog"
)

// Window owns the GLFW window and the vk.Surface created against it.
// There is exactly one per process: this renderer doesn't support
// multi-window output.
type Window struct {
	win     *glfw.Window
	surface vk.Surface
	width   int
	height  int
}

// OpenWindow initializes GLFW (if not already initialized by a prior
// call in the process) and creates a resizable, Vulkan-only window —
// GLFW's OpenGL context creation is disabled since this module only
// ever talks to the GPU through vulkan-go.
func OpenWindow(title string, width, height int) (*Window, error) {
	if !glfw.VulkanSupported() {
		return nil, rgerr.IO("glfw reports no Vulkan loader/ICD on this system")
	}
	if err := glfw.Init(); err != nil {
		return nil, rgerr.IO("glfw: failed to initialize: %v", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, rgerr.IO("glfw: failed to create window: %v", err)
	}
	rlog.Global().Info.Printf("platform: opened %dx%d window %q", width, height, title)
	return &Window{win: win, width: width, height: height}, nil
}

// RequiredInstanceExtensions asks GLFW for the instance extensions its
// surface type needs (VK_KHR_surface plus the platform-specific
// VK_KHR_*_surface); Bootstrap appends these to its own required list.
func (w *Window) RequiredInstanceExtensions() []string {
	return w.win.GetRequiredInstanceExtensions()
}

// CreateSurface creates the vk.Surface for this window against
// instance. Must be called after the instance exists and before
// physical device selection, since presentation support is a
// per-queue-family, per-surface query.
func (w *Window) CreateSurface(instance vk.Instance) error {
	surf, err := w.win.CreateWindowSurface(instance, nil)
	if err != nil {
		return rgerr.IO("vulkan: failed to create window surface: %v", err)
	}
	w.surface = vk.SurfaceFromPointer(surf)
	return nil
}

func (w *Window) Surface() vk.Surface { return w.surface }

// Size returns the current framebuffer size in pixels, used to detect
// the resize that forces a swapchain and HZB rebuild.
func (w *Window) Size() (int, int) {
	return w.win.GetFramebufferSize()
}

func (w *Window) ShouldClose() bool { return w.win.ShouldClose() }

func (w *Window) PollEvents() { glfw.PollEvents() }

func (w *Window) Destroy(instance vk.Instance) {
	if w.surface != vk.NullSurface {
		vk.DestroySurface(instance, w.surface, nil)
		w.surface = vk.NullSurface
	}
	w.win.Destroy()
	glfw.Terminate()
}

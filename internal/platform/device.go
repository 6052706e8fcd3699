package platform

import (
	"sync"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/internal/rgerr"
	"github.com/dieselvk/radgraph/internal/rlog"
)

// vulkanInit wires vulkan-go's function pointers to GLFW's Vulkan
// loader exactly once per process — every instance after the first
// reuses the same vk.SetGetInstanceProcAddr/vk.Init() call.
var vulkanInit sync.Once
var vulkanInitErr error

func ensureVulkanLoaded() error {
	vulkanInit.Do(func() {
		vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
		vulkanInitErr = vk.Init()
	})
	return vulkanInitErr
}

// requiredDeviceExtensions are the extensions every component in this
// module assumes are present: swapchain presentation, descriptor
// indexing + buffer device address + timeline semaphores + sync2 for
// the bindless/graph layer (descriptor, resource, queue, graph), and
// mesh shading for the hardware half of the vis-buffer rasterizer.
var requiredDeviceExtensions = []string{
	"VK_KHR_swapchain",
	"VK_EXT_descriptor_indexing",
	"VK_KHR_buffer_device_address",
	"VK_KHR_timeline_semaphore",
	"VK_KHR_synchronization2",
	"VK_EXT_mesh_shader",
	"VK_KHR_8bit_storage", // meshlet-local indices are stored as u8 on disk and read directly by shaders
}

// FamilyCaps is what Bootstrap knows about one queue family after
// querying vkGetPhysicalDeviceQueueFamilyProperties and, if a surface
// was given, vkGetPhysicalDeviceSurfaceSupportKHR. It's split out from
// the raw Vulkan types so family selection can be unit tested without
// a GPU.
type FamilyCaps struct {
	Graphics bool
	Compute  bool
	Transfer bool
	Present  bool
}

// QueueFamilies is the result of family selection: the index used for
// each of this module's three queue/queue.Kind roles, plus whichever
// family (if any) was picked for presentation.
type QueueFamilies struct {
	Graphics uint32
	Compute  uint32
	Transfer uint32
	Present  uint32
	HasGfx   bool
	HasCmp   bool
	HasXfer  bool
	HasPres  bool
}

// pickQueueFamilies prefers a dedicated compute family (for async
// compute overlap with the graphics family during cull/HZB passes) and
// a dedicated transfer family (for upload DMA) when the GPU exposes
// them, falling back to the graphics family for either role when it
// doesn't — matching how most desktop GPUs expose exactly one
// graphics+compute+transfer family plus a couple of narrower ones.
func pickQueueFamilies(caps []FamilyCaps) QueueFamilies {
	var out QueueFamilies

	for i, c := range caps {
		if c.Graphics && !out.HasGfx {
			out.Graphics, out.HasGfx = uint32(i), true
		}
		if c.Present && !out.HasPres {
			out.Present, out.HasPres = uint32(i), true
		}
	}

	// Dedicated compute: a family with Compute but not Graphics.
	for i, c := range caps {
		if c.Compute && !c.Graphics {
			out.Compute, out.HasCmp = uint32(i), true
			break
		}
	}
	if !out.HasCmp && out.HasGfx {
		out.Compute, out.HasCmp = out.Graphics, true
	}

	// Dedicated transfer: a family with Transfer but neither Graphics nor Compute.
	for i, c := range caps {
		if c.Transfer && !c.Graphics && !c.Compute {
			out.Transfer, out.HasXfer = uint32(i), true
			break
		}
	}
	if !out.HasXfer && out.HasGfx {
		out.Transfer, out.HasXfer = out.Graphics, true
	}

	return out
}

// Device owns the Vulkan instance, the selected physical device and
// the logical device with the three queue families this module's
// queue.Kind enum expects.
type Device struct {
	Instance vk.Instance
	Gpu      vk.PhysicalDevice
	Handle   vk.Device
	Families QueueFamilies

	Graphics vk.Queue
	Compute  vk.Queue
	Transfer vk.Queue

	debugMessenger vk.DebugReportCallback
}

// BootstrapOptions configures instance/device creation.
type BootstrapOptions struct {
	AppName    string
	Validation bool // enables VK_LAYER_KHRONOS_validation and a debug report callback logged through rlog
	Window     *Window
}

// Bootstrap creates the Vulkan instance, picks a physical device able
// to present to opts.Window's surface (if given) with the queue
// families this module needs, and creates the logical device —
// generalizing platform.go's NewPlatform, which did the same walk for
// a single graphics+present queue, to the graphics+compute+transfer
// split the render graph's queue package schedules across.
func Bootstrap(opts BootstrapOptions) (*Device, error) {
	if err := ensureVulkanLoaded(); err != nil {
		return nil, rgerr.IO("vulkan: failed to load: %v", err)
	}

	instanceExts := []string{}
	if opts.Window != nil {
		instanceExts = append(instanceExts, opts.Window.RequiredInstanceExtensions()...)
	}
	var layers []string
	if opts.Validation {
		layers = append(layers, "VK_LAYER_KHRONOS_validation")
		instanceExts = append(instanceExts, "VK_EXT_debug_report")
	}

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:            vk.StructureTypeApplicationInfo,
			ApiVersion:       uint32(vk.MakeVersion(1, 2, 0)),
			PEngineName:      "radgraph\x00",
			PApplicationName: opts.AppName + "\x00",
		},
		EnabledExtensionCount:   uint32(len(instanceExts)),
		PpEnabledExtensionNames: instanceExts,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &instance)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, err
	}
	vk.InitInstance(instance)
	rlog.Global().Info.Printf("platform: created instance (app=%q validation=%v)", opts.AppName, opts.Validation)

	d := &Device{Instance: instance}

	if opts.Validation {
		ret := vk.CreateDebugReportCallback(instance, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
			PfnCallback: debugReportCallback,
		}, nil, &d.debugMessenger)
		if err := rgerr.FromResult(ret); err != nil {
			vk.DestroyInstance(instance, nil)
			return nil, err
		}
	}

	if opts.Window != nil {
		if err := opts.Window.CreateSurface(instance); err != nil {
			vk.DestroyInstance(instance, nil)
			return nil, err
		}
	}

	gpu, families, err := selectPhysicalDevice(instance, opts.Window)
	if err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, err
	}
	d.Gpu = gpu
	d.Families = families

	device, err := createLogicalDevice(gpu, families)
	if err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, err
	}
	d.Handle = device

	vk.GetDeviceQueue(device, families.Graphics, 0, &d.Graphics)
	vk.GetDeviceQueue(device, families.Compute, 0, &d.Compute)
	vk.GetDeviceQueue(device, families.Transfer, 0, &d.Transfer)

	rlog.Global().Info.Printf("platform: device ready (graphics=%d compute=%d transfer=%d present=%d)",
		families.Graphics, families.Compute, families.Transfer, families.Present)
	return d, nil
}

func selectPhysicalDevice(instance vk.Instance, window *Window) (vk.PhysicalDevice, QueueFamilies, error) {
	var count uint32
	ret := vk.EnumeratePhysicalDevices(instance, &count, nil)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, QueueFamilies{}, err
	}
	if count == 0 {
		return nil, QueueFamilies{}, rgerr.IO("no Vulkan-capable GPU found")
	}
	gpus := make([]vk.PhysicalDevice, count)
	ret = vk.EnumeratePhysicalDevices(instance, &count, gpus)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, QueueFamilies{}, err
	}

	var surface vk.Surface
	wantPresent := window != nil
	if wantPresent {
		surface = window.Surface()
	}

	for _, gpu := range gpus {
		var famCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &famCount, nil)
		props := make([]vk.QueueFamilyProperties, famCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &famCount, props)

		caps := make([]FamilyCaps, famCount)
		for i := range props {
			props[i].Deref()
			flags := props[i].QueueFlags
			caps[i] = FamilyCaps{
				Graphics: flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0,
				Compute:  flags&vk.QueueFlags(vk.QueueComputeBit) != 0,
				Transfer: flags&vk.QueueFlags(vk.QueueTransferBit) != 0,
			}
			if wantPresent {
				var supported vk.Bool32
				vk.GetPhysicalDeviceSurfaceSupport(gpu, uint32(i), surface, &supported)
				caps[i].Present = supported.B()
			}
		}

		families := pickQueueFamilies(caps)
		if !families.HasGfx || !families.HasCmp || !families.HasXfer {
			continue
		}
		if wantPresent && !families.HasPres {
			continue
		}
		return gpu, families, nil
	}
	return nil, QueueFamilies{}, rgerr.IO("no GPU exposes the graphics/compute/transfer (and, if windowed, present) queue families this renderer needs")
}

func createLogicalDevice(gpu vk.PhysicalDevice, families QueueFamilies) (vk.Device, error) {
	seen := map[uint32]bool{}
	var infos []vk.DeviceQueueCreateInfo
	for _, fam := range []uint32{families.Graphics, families.Compute, families.Transfer, families.Present} {
		if seen[fam] {
			continue
		}
		seen[fam] = true
		infos = append(infos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: fam,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	// Bindless indexing, sync2, timeline semaphores and mesh shading are
	// requested as extensions only, matching descriptor.go's and
	// queue.go's own level of trust in the driver rather than chaining
	// a PhysicalDeviceFeatures2 struct per extension — the example this
	// module is built from enables extensions the same way, through the
	// device create info's extension name list alone.
	var device vk.Device
	ret := vk.CreateDevice(gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(infos)),
		PQueueCreateInfos:       infos,
		EnabledExtensionCount:   uint32(len(requiredDeviceExtensions)),
		PpEnabledExtensionNames: requiredDeviceExtensions,
	}, nil, &device)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, err
	}
	vk.InitDevice(device)
	return device, nil
}

// debugReportCallback routes VK_EXT_debug_report messages through
// rlog's warn/error loggers instead of the teacher's dbgCallbackFunc,
// which wrote straight to the standard log package.
func debugReportCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	loggers := rlog.Global()
	if flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0 {
		loggers.Error.Printf("vulkan [%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	} else {
		loggers.Warn.Printf("vulkan [%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

func (d *Device) Destroy() {
	if d.Handle != nil {
		vk.DeviceWaitIdle(d.Handle)
		vk.DestroyDevice(d.Handle, nil)
	}
	if d.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(d.Instance, d.debugMessenger, nil)
	}
	if d.Instance != nil {
		vk.DestroyInstance(d.Instance, nil)
	}
}


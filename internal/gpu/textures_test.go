package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/viewfinder/format"
	"github.com/gogpu/viewfinder/internal/gputest"
	"github.com/gogpu/viewfinder/internal/profile"
)

func TestUploadSlotSizes(t *testing.T) {
	tests := []struct {
		name           string
		format         format.PixelFormat
		stride, height uint32
		want           [][2]uint32
	}{
		{"NV12", format.NV12, 640, 480, [][2]uint32{{640, 480}, {320, 240}}},
		{"NV12 odd height", format.NV12, 640, 481, [][2]uint32{{640, 481}, {320, 241}}},
		{"NV16", format.NV16, 640, 480, [][2]uint32{{640, 480}, {320, 480}}},
		{"NV24", format.NV24, 640, 480, [][2]uint32{{640, 480}, {640, 480}}},
		{"YUV420", format.YUV420, 640, 480, [][2]uint32{{640, 480}, {320, 240}, {320, 240}}},
		{"YUYV", format.YUYV, 1280, 480, [][2]uint32{{320, 480}}},
		{"ARGB8888", format.ARGB8888, 2560, 480, [][2]uint32{{640, 480}}},
		{"RGB888", format.RGB888, 1920, 480, [][2]uint32{{1920, 480}}},
		{"SRGGB10_CSI2P", format.SRGGB10CSI2P, 800, 480, [][2]uint32{{800, 480}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device, queue, rec := gputest.Counting(t)
			u := NewTextureUploader(device, queue)
			p := selectProfile(t, tt.format)

			if _, err := u.Upload(planesFor(p, tt.stride, tt.height), p, 640, tt.height, tt.stride); err != nil {
				t.Fatalf("Upload() = %v", err)
			}
			if got := u.Populated(); got != len(tt.want) {
				t.Fatalf("Populated() = %d, want %d", got, len(tt.want))
			}
			for slot, want := range tt.want {
				w, h := u.SlotSize(slot)
				if w != want[0] || h != want[1] {
					t.Errorf("slot %d = %dx%d, want %dx%d", slot, w, h, want[0], want[1])
				}
			}
			if got := rec.Counts().WriteTextures; got != len(tt.want) {
				t.Errorf("WriteTexture calls = %d, want %d", got, len(tt.want))
			}
		})
	}
}

func TestUploadReusesTextures(t *testing.T) {
	device, queue, rec := gputest.Counting(t)
	u := NewTextureUploader(device, queue)
	p := selectProfile(t, format.NV12)
	planes := planesFor(p, 640, 480)

	if _, err := u.Upload(planes, p, 640, 480, 640); err != nil {
		t.Fatal(err)
	}
	gen := u.Generation()
	textures := rec.Counts().Textures

	if _, err := u.Upload(planes, p, 640, 480, 640); err != nil {
		t.Fatal(err)
	}
	if u.Generation() != gen {
		t.Errorf("generation changed on same-size upload: %d -> %d", gen, u.Generation())
	}
	if got := rec.Counts().Textures; got != textures {
		t.Errorf("textures created = %d, want %d", got, textures)
	}

	bigger := planesFor(p, 1280, 720)
	if _, err := u.Upload(bigger, p, 1280, 720, 1280); err != nil {
		t.Fatal(err)
	}
	if u.Generation() == gen {
		t.Error("generation unchanged after resize")
	}
	if got := rec.Counts().Textures; got != textures+2 {
		t.Errorf("textures created = %d, want %d", got, textures+2)
	}
}

func TestUploadReleasesUnusedSlots(t *testing.T) {
	device, queue := gputest.NoopDevice(t)
	u := NewTextureUploader(device, queue)

	planar := selectProfile(t, format.YUV420)
	if _, err := u.Upload(planesFor(planar, 64, 48), planar, 64, 48, 64); err != nil {
		t.Fatal(err)
	}
	if u.Populated() != 3 {
		t.Fatalf("Populated() = %d, want 3", u.Populated())
	}

	semi := selectProfile(t, format.NV12)
	if _, err := u.Upload(planesFor(semi, 64, 48), semi, 64, 48, 64); err != nil {
		t.Fatal(err)
	}
	if u.Populated() != 2 {
		t.Errorf("Populated() = %d, want 2", u.Populated())
	}
	if u.View(profile.SlotV) != nil {
		t.Error("slot V still holds a view")
	}
}

func TestUploadEmptyFrame(t *testing.T) {
	tests := []struct {
		name           string
		stride, height uint32
	}{
		{"zero stride", 0, 480},
		{"zero height", 640, 0},
		{"chroma rounds to zero", 1, 480},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device, queue, rec := gputest.Counting(t)
			u := NewTextureUploader(device, queue)
			p := selectProfile(t, format.NV12)
			planes := [][]byte{make([]byte, 1<<20), make([]byte, 1<<20)}

			_, err := u.Upload(planes, p, 640, tt.height, tt.stride)
			if !errors.Is(err, ErrEmptyFrame) {
				t.Fatalf("Upload() = %v, want ErrEmptyFrame", err)
			}
			if c := rec.Counts(); c.WriteTextures != 0 || c.Textures != 0 {
				t.Errorf("counts = %+v, want no textures", c)
			}
		})
	}
}

func TestUploadShortPlane(t *testing.T) {
	device, queue, rec := gputest.Counting(t)
	u := NewTextureUploader(device, queue)
	p := selectProfile(t, format.NV12)

	planes := planesFor(p, 640, 480)
	planes[1] = planes[1][:len(planes[1])-1]
	if _, err := u.Upload(planes, p, 640, 480, 640); !errors.Is(err, ErrPlaneData) {
		t.Fatalf("Upload() = %v, want ErrPlaneData", err)
	}
	if _, err := u.Upload(planes[:1], p, 640, 480, 640); !errors.Is(err, ErrPlaneData) {
		t.Fatalf("Upload() with missing plane = %v, want ErrPlaneData", err)
	}
	if got := rec.Counts().WriteTextures; got != 0 {
		t.Errorf("WriteTexture calls = %d, want 0", got)
	}
}

func TestUploadRowPitchFollowsStride(t *testing.T) {
	tests := []struct {
		name   string
		format format.PixelFormat
		width  uint32
		stride uint32
		want   []uint32
	}{
		{"NV12 padded", format.NV12, 5, 8, []uint32{8, 8}},
		{"NV24 padded", format.NV24, 5, 6, []uint32{6, 12}},
		{"YUV420 padded", format.YUV420, 6, 10, []uint32{10, 5, 5}},
		{"YUYV padded", format.YUYV, 4, 12, []uint32{12}},
		{"ARGB8888 padded", format.ARGB8888, 4, 20, []uint32{20}},
		{"RGB888 padded", format.RGB888, 4, 13, []uint32{13}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device, queue, rec := gputest.Counting(t)
			u := NewTextureUploader(device, queue)
			p := selectProfile(t, tt.format)

			if _, err := u.Upload(planesFor(p, tt.stride, 4), p, tt.width, 4, tt.stride); err != nil {
				t.Fatalf("Upload() = %v", err)
			}
			got := rec.RowPitches()
			if len(got) != len(tt.want) {
				t.Fatalf("row pitches = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("row pitches = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestUploadRejectsUnalignedStride(t *testing.T) {
	tests := []struct {
		name   string
		format format.PixelFormat
		width  uint32
		stride uint32
	}{
		{"YUYV", format.YUYV, 4, 10},
		{"ARGB8888", format.ARGB8888, 4, 18},
		{"NV12", format.NV12, 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device, queue, rec := gputest.Counting(t)
			u := NewTextureUploader(device, queue)
			p := selectProfile(t, tt.format)
			planes := [][]byte{make([]byte, 1<<12), make([]byte, 1<<12)}

			_, err := u.Upload(planes, p, tt.width, 4, tt.stride)
			if !errors.Is(err, profile.ErrStrideAlignment) {
				t.Fatalf("Upload() = %v, want ErrStrideAlignment", err)
			}
			if c := rec.Counts(); c.WriteTextures != 0 || c.Textures != 0 {
				t.Errorf("counts = %+v, want nothing uploaded", c)
			}
		})
	}
}

func TestUploadUniforms(t *testing.T) {
	device, queue := gputest.NoopDevice(t)
	u := NewTextureUploader(device, queue)
	p := selectProfile(t, format.NV12)

	got, err := u.Upload(planesFor(p, 768, 480), p, 640, 480, 768)
	if err != nil {
		t.Fatal(err)
	}
	if want := profile.StrideFactor(640, 768); got.StrideFactor != want {
		t.Errorf("StrideFactor = %v, want %v", got.StrideFactor, want)
	}
}

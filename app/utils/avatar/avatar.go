package avatar

import (
	"fmt"
	"hash/fnv"
	"image/color"
	"strings"
	"unicode"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

// 占位头像的背景色池，按名称哈希取色保证同名稳定
var palette = []color.RGBA{
	{R: 0x4C, G: 0xAF, B: 0x50, A: 0xFF},
	{R: 0x21, G: 0x96, B: 0xF3, A: 0xFF},
	{R: 0x9C, G: 0x27, B: 0xB0, A: 0xFF},
	{R: 0xFF, G: 0x57, B: 0x22, A: 0xFF},
	{R: 0x79, G: 0x55, B: 0x48, A: 0xFF},
	{R: 0x60, G: 0x7D, B: 0x8B, A: 0xFF},
	{R: 0xE9, G: 0x1E, B: 0x63, A: 0xFF},
	{R: 0x00, G: 0x96, B: 0x88, A: 0xFF},
}

const (
	renderSize = 256 // 渲染尺寸
	outputSize = 176 // 输出尺寸，与 YouTube 频道头像一致
)

// Generate 用名称首字符生成占位头像并保存为 PNG
func Generate(name, savePath string) error {
	letter := initialOf(name)

	dc := gg.NewContext(renderSize, renderSize)
	dc.SetColor(backgroundFor(name))
	dc.Clear()

	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return fmt.Errorf("解析内置字体失败: %w", err)
	}
	dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: renderSize / 2}))
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(letter, renderSize/2, renderSize/2, 0.5, 0.5)

	resized := imaging.Resize(dc.Image(), outputSize, outputSize, imaging.Lanczos)
	return imaging.Save(resized, savePath)
}

// initialOf 取名称的第一个可见字符并转为大写
func initialOf(name string) string {
	for _, r := range strings.TrimSpace(name) {
		return string(unicode.ToUpper(r))
	}
	return "?"
}

// backgroundFor 按名称哈希从色池中取背景色
func backgroundFor(name string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(name))
	return palette[h.Sum32()%uint32(len(palette))]
}

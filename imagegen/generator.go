package imagegen

import "github.com/HydroGest/lmarena/bridge"

// TotalBytes sums the downloaded sizes of images. An image without a RawSize
// counts as len(Data).
func TotalBytes(images []InputImage) int64 {
	var total int64
	for _, img := range images {
		if img.RawSize > 0 {
			total += img.RawSize
		} else {
			total += int64(len(img.Data))
		}
	}
	return total
}

// BuildRequest encodes images as data URLs, in order, into a bridge request.
// The request carries their downloaded size for 413 diagnostics.
func BuildRequest(model, prompt string, images []InputImage) bridge.GenerationRequest {
	urls := make([]string, len(images))
	for i, img := range images {
		urls[i] = img.DataURL()
	}
	return bridge.NewGenerationRequest(model, prompt, urls, TotalBytes(images))
}

package loader

import "io"

// gltfLoaderBackendImpl reads glTF and GLB files. A fresh parser is used for every load.
type gltfLoaderBackendImpl struct{}

var _ loaderBackend = &gltfLoaderBackendImpl{}

func newGLTFLoaderBackend() loaderBackend {
	return &gltfLoaderBackendImpl{}
}

func (b *gltfLoaderBackendImpl) Load(path string) (*meshData, error) {
	p := newGLTFParser()
	if err := p.Parse(path); err != nil {
		return nil, err
	}
	return newGLTFMeshExtractor(p).Extract()
}

func (b *gltfLoaderBackendImpl) LoadReader(r io.Reader, isGLB bool) (*meshData, error) {
	p := newGLTFParser()
	if err := p.ParseReader(r, isGLB); err != nil {
		return nil, err
	}
	return newGLTFMeshExtractor(p).Extract()
}

package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/passagehq/passage/pkg/dotdir"
)

var _ = Describe("WatchState", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "watchstate-test-*")
		Expect(err).NotTo(HaveOccurred())

		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadWatchState", func() {
		It("returns nil when no state exists", func() {
			state, err := m.LoadWatchState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("round-trips a saved state", func() {
			saved := &dotdir.WatchState{
				Seen: map[string]string{
					"/docs/a.txt": "deadbeef",
					"/docs/b.txt": "cafebabe",
				},
			}
			Expect(m.SaveWatchState(saved, tmpDir)).To(Succeed())

			loaded, err := m.LoadWatchState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).NotTo(BeNil())
			Expect(loaded.Seen).To(HaveLen(2))
			Expect(loaded.Seen["/docs/a.txt"]).To(Equal("deadbeef"))
		})

		It("errors on corrupt state", func() {
			path := filepath.Join(tmpDir, "watch.json")
			Expect(os.WriteFile(path, []byte("{not json"), 0o644)).To(Succeed())

			_, err := m.LoadWatchState(tmpDir)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SaveWatchState", func() {
		It("rejects nil state", func() {
			Expect(m.SaveWatchState(nil, tmpDir)).NotTo(Succeed())
		})

		It("overwrites previous state", func() {
			first := &dotdir.WatchState{Seen: map[string]string{"/a": "1"}}
			Expect(m.SaveWatchState(first, tmpDir)).To(Succeed())

			second := &dotdir.WatchState{Seen: map[string]string{"/b": "2"}}
			Expect(m.SaveWatchState(second, tmpDir)).To(Succeed())

			loaded, err := m.LoadWatchState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Seen).To(HaveLen(1))
			Expect(loaded.Seen).To(HaveKey("/b"))
		})
	})

	Describe("ClearWatchState", func() {
		It("removes saved state", func() {
			state := &dotdir.WatchState{Seen: map[string]string{"/a": "1"}}
			Expect(m.SaveWatchState(state, tmpDir)).To(Succeed())

			Expect(m.ClearWatchState(tmpDir)).To(Succeed())

			loaded, err := m.LoadWatchState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeNil())
		})

		It("is a no-op when no state exists", func() {
			Expect(m.ClearWatchState(tmpDir)).To(Succeed())
		})
	})
})

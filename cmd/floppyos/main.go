package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dargueta/floppyos/disks"
	"github.com/dargueta/floppyos/kernel"
	"github.com/dargueta/floppyos/machine"
	"github.com/urfave/cli/v2"
	"github.com/xaionaro-go/bytesextra"
)

func main() {
	app := cli.App{
		Usage: "Boot the floppy kernel against a FAT12 disk image",
		Commands: []*cli.Command{
			{
				Name:      "format",
				Usage:     "Create a blank, formatted floppy image",
				Action:    formatImage,
				ArgsUsage: "IMAGE_FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "geometry",
						Value: disks.Slug144MB,
						Usage: "disk format slug",
					},
				},
			},
			{
				Name:      "demo",
				Usage:     "Boot the multitasking demo and print the screen",
				Action:    runDemo,
				ArgsUsage: "[IMAGE_FILE]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "fair",
						Usage: "run the terse round-robin variant",
					},
				},
			},
			{
				Name:      "ls",
				Usage:     "List the root directory of an image",
				Action:    listImage,
				ArgsUsage: "IMAGE_FILE",
			},
			{
				Name:      "write",
				Usage:     "Write stdin into a file on the image",
				Action:    writeFile,
				ArgsUsage: "IMAGE_FILE NAME.EXT",
			},
			{
				Name:      "cat",
				Usage:     "Print a file from the image",
				Action:    catFile,
				ArgsUsage: "IMAGE_FILE NAME.EXT",
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func formatImage(context *cli.Context) error {
	if context.NArg() != 1 {
		return fmt.Errorf("expected exactly one image path")
	}

	geometry, err := disks.GetPredefinedDiskGeometry(context.String("geometry"))
	if err != nil {
		return err
	}

	imageFile, err := os.Create(context.Args().First())
	if err != nil {
		return err
	}
	defer imageFile.Close()

	if err := imageFile.Truncate(geometry.TotalSizeBytes()); err != nil {
		return err
	}
	return disks.FormatFAT12Image(imageFile, geometry)
}

func runDemo(context *cli.Context) error {
	var m *machine.Machine
	var err error

	if context.NArg() > 0 {
		m, _, err = bootedMachine(context.Args().First())
	} else {
		m, err = machine.NewWithBlankDisk()
	}
	if err != nil {
		return err
	}

	k := kernel.New(m)
	entry := k.ProcessTraceDemo()
	if context.Bool("fair") {
		entry = k.RoundRobinDemo()
	}
	if err := k.Boot(entry); err != nil {
		return err
	}

	fmt.Println(m.Video.Screen())
	return nil
}

func listImage(context *cli.Context) error {
	k, closeImage, err := mountedKernel(context)
	if err != nil {
		return err
	}
	defer closeImage()

	for _, entry := range k.FS.DirectoryEntries() {
		fmt.Printf("%-12s  cluster %-4d  %d bytes\n",
			entry.DisplayName(), entry.StartingCluster, entry.FileSize)
	}
	return nil
}

func writeFile(context *cli.Context) error {
	name, ext, err := splitName(context.Args().Get(1))
	if err != nil {
		return err
	}

	k, closeImage, err := mountedKernel(context)
	if err != nil {
		return err
	}
	defer closeImage()

	content, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}

	if err := k.FS.CreateFile(name, ext); err != nil {
		return err
	}
	if err := k.FS.OpenFile(name, ext); err != nil {
		return err
	}
	for i, b := range content {
		if err := k.FS.WriteByte(b, uint32(i)); err != nil {
			return err
		}
	}
	return k.FS.CloseFile()
}

func catFile(context *cli.Context) error {
	name, ext, err := splitName(context.Args().Get(1))
	if err != nil {
		return err
	}

	k, closeImage, err := mountedKernel(context)
	if err != nil {
		return err
	}
	defer closeImage()

	if err := k.FS.OpenFile(name, ext); err != nil {
		return err
	}

	size, err := k.FS.FileSize()
	if err != nil {
		return err
	}
	for i := uint32(0); i < size; i++ {
		b, err := k.FS.ReadByte(i)
		if err != nil {
			return err
		}
		os.Stdout.Write([]byte{b})
	}
	return k.FS.CloseFile()
}

// bootedMachine assembles a machine around an image file loaded fully into
// memory. Callers that modify the image write the returned bytes back out.
func bootedMachine(path string) (*machine.Machine, []byte, error) {
	geometry, err := disks.GetPredefinedDiskGeometry(disks.Slug144MB)
	if err != nil {
		return nil, nil, err
	}

	imageBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if int64(len(imageBytes)) != geometry.TotalSizeBytes() {
		return nil, nil, fmt.Errorf(
			"image %q is %d bytes, expected %d",
			path, len(imageBytes), geometry.TotalSizeBytes())
	}

	m := machine.New(bytesextra.NewReadWriteSeeker(imageBytes), geometry)
	return m, imageBytes, nil
}

// mountedKernel boots a kernel from the image file named in the first
// argument and mounts its file system. The returned function writes any
// image modifications back to the file.
func mountedKernel(context *cli.Context) (*kernel.Kernel, func(), error) {
	if context.NArg() < 1 {
		return nil, nil, fmt.Errorf("expected an image path")
	}
	path := context.Args().First()

	m, imageBytes, err := bootedMachine(path)
	if err != nil {
		return nil, nil, err
	}
	k := kernel.New(m)
	k.Console.ClearScreen()
	k.Keyboard.InitKeymap()
	if err := k.MountFloppy(); err != nil {
		return nil, nil, err
	}

	flush := func() {
		if err := os.WriteFile(path, imageBytes, 0o644); err != nil {
			log.Printf("failed to write image back: %s", err)
		}
	}
	return k, flush, nil
}

func splitName(arg string) (name, ext string, err error) {
	if arg == "" {
		return "", "", fmt.Errorf("expected a NAME.EXT argument")
	}

	parts := strings.SplitN(strings.ToUpper(arg), ".", 2)
	name = parts[0]
	if len(parts) == 2 {
		ext = parts[1]
	}
	if len(name) > 8 || len(ext) > 3 {
		return "", "", fmt.Errorf("name %q does not fit 8.3", arg)
	}
	return name, ext, nil
}

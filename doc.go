/*
go-yolocam runs YOLOv8 object detection over a live camera feed and hands
annotated frames to a presentation layer in near real time.

The root package defines the contract with the inference engine (Runtime and
Tensor), the error types shared by the pipeline and the COCO label table.
The detection pipeline lives in the subpackages:

  - preprocess: letterbox transform and tensor packing
  - postprocess: decoding of the network output and non-maximum suppression
  - render: boxes, label strips and the FPS overlay
  - detector: frame in, detections out
  - capture: camera devices and looped video files
  - stream: the capture/render loop feeding a presentation mailbox
  - display: MJPEG over HTTP or an OpenCV window
  - onnx: an ONNX Runtime backed Runtime

See cmd/yolocam for a complete application.
*/
package yolocam
